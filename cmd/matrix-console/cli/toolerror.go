// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/matrix-console/lib/identity"
	"github.com/bureau-foundation/matrix-console/messaging"
)

// ErrorCategory classifies command errors so scripts can decide whether
// to retry, fix input, or escalate without parsing message text.
type ErrorCategory string

const (
	// CategoryValidation: the caller provided invalid input. Fix the
	// input and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: a referenced resource does not exist (unknown
	// endpoint, identity, room, or alias).
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryForbidden: the identity lacks permission or its token is
	// no longer valid.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryTransient: network failure, timeout, or rate limit. Back
	// off and retry.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: anything else, including responses that were
	// not JSON.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized command error. It wraps the underlying
// error, so errors.Is and errors.As see the whole chain.
type ToolError struct {
	// Category classifies the error for programmatic handling.
	Category ErrorCategory

	// Err is the underlying error with the human-readable message.
	Err error
}

// Error returns the underlying error message without the category.
func (e *ToolError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode maps the category to the process exit status: 2 for bad
// input, 1 for everything else.
func (e *ToolError) ExitCode() int {
	if e.Category == CategoryValidation {
		return 2
	}
	return 1
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error: a referenced resource does not exist.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure or I/O error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// Categorize returns err's category. An explicit *ToolError wins;
// otherwise request failures are classified by kind: Matrix errcodes by
// meaning, transport failures as transient, unparsable responses as
// internal.
func Categorize(err error) ErrorCategory {
	var toolError *ToolError
	if errors.As(err, &toolError) {
		return toolError.Category
	}
	if errors.Is(err, identity.ErrNotFound) {
		return CategoryNotFound
	}
	if code, ok := messaging.ErrorCode(err); ok {
		switch code {
		case messaging.ErrCodeForbidden, messaging.ErrCodeUnknownToken, messaging.ErrCodeMissingToken:
			return CategoryForbidden
		case messaging.ErrCodeNotFound:
			return CategoryNotFound
		case messaging.ErrCodeLimitExceeded:
			return CategoryTransient
		case messaging.ErrCodeInvalidParam, messaging.ErrCodeMissingParam, messaging.ErrCodeBadJSON:
			return CategoryValidation
		}
		return CategoryInternal
	}
	if messaging.IsTransport(err) {
		return CategoryTransient
	}
	return CategoryInternal
}
