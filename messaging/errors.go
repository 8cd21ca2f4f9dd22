// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/bureau-foundation/matrix-console/lib/netutil"
)

// MatrixError is a structured error response from the homeserver: the
// response arrived, its body parsed as JSON, and its status was not
// 2xx. Callers can use errors.As to extract it:
//
//	var matrixErr *messaging.MatrixError
//	if errors.As(err, &matrixErr) {
//	    if matrixErr.Code == messaging.ErrCodeUnknownToken { ... }
//	}
//
// Prefer [ErrorCode] when only the errcode matters; it also matches
// errors that were rebuilt on the far side of a serialization boundary.
type MatrixError struct {
	// Code is the Matrix error code (e.g., "M_FORBIDDEN"). Empty when
	// the server's JSON body carried no errcode.
	Code string `json:"errcode"`
	// Message is the server's human-readable "error" field.
	Message string `json:"error"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
	// Content is the full decoded error payload. Nil when the body was
	// valid JSON but not an object.
	Content map[string]any `json:"-"`
}

func (e *MatrixError) Error() string {
	code := e.Code
	if code == "" {
		code = "M_UNKNOWN"
	}
	if e.Message == "" {
		return fmt.Sprintf("matrix: %s (%d)", code, e.StatusCode)
	}
	return fmt.Sprintf("matrix: %s (%d): %s", code, e.StatusCode, e.Message)
}

// MatrixErrcode returns the errcode. It is the capability [ErrorCode]
// looks for.
func (e *MatrixError) MatrixErrcode() string {
	return e.Code
}

// Standard Matrix error codes.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeMissingToken  = "M_MISSING_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeUserInUse     = "M_USER_IN_USE"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnrecognized  = "M_UNRECOGNIZED"
	ErrCodeUnknown       = "M_UNKNOWN"
	ErrCodeInvalidParam  = "M_INVALID_PARAM"
	ErrCodeMissingParam  = "M_MISSING_PARAM"
	ErrCodeBadJSON       = "M_BAD_JSON"
	ErrCodeExclusive     = "M_EXCLUSIVE"
	ErrCodeRoomInUse     = "M_ROOM_IN_USE"
)

// NotJSONError reports a response whose body could not be parsed as
// JSON. It is raised regardless of the HTTP status and is never retried.
type NotJSONError struct {
	// Resource is the request URL.
	Resource string
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Snippet is a short printable excerpt of the body.
	Snippet string
}

func (e *NotJSONError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("messaging: response from %s (status %d) is not JSON: empty body", e.Resource, e.StatusCode)
	}
	return fmt.Sprintf("messaging: response from %s (status %d) is not JSON: %s", e.Resource, e.StatusCode, e.Snippet)
}

// errcoder is the capability shared by every error that carries a
// Matrix errcode.
type errcoder interface {
	MatrixErrcode() string
}

// ErrorCode returns the Matrix errcode carried anywhere in err's chain.
// The check is by capability (a MatrixErrcode method), not by concrete
// type. ok is false when no error in the chain carries a non-empty code.
func ErrorCode(err error) (code string, ok bool) {
	var coder errcoder
	if errors.As(err, &coder) {
		code = coder.MatrixErrcode()
		return code, code != ""
	}
	return "", false
}

// IsMatrixError reports whether err carries the given Matrix errcode.
func IsMatrixError(err error, code string) bool {
	got, ok := ErrorCode(err)
	return ok && got == code
}

// IsNotJSON reports whether err is (or wraps) a *NotJSONError.
func IsNotJSON(err error) bool {
	var notJSON *NotJSONError
	return errors.As(err, &notJSON)
}

// IsTransport reports whether err is a transport failure: an error the
// HTTP client produced before a usable response existed (connection,
// DNS, TLS, cancellation, deadline, truncated body). Dispatch returns
// these unchanged, so the check looks for the standard library's own
// error types.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}

// Describe renders err for an operator: the errcode and message for a
// Matrix error, the transport class for network failures, and the error
// text otherwise.
func Describe(err error) string {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		if matrixErr.Message == "" {
			return fmt.Sprintf("%s (HTTP %d %s)", matrixErr.Code, matrixErr.StatusCode, http.StatusText(matrixErr.StatusCode))
		}
		return fmt.Sprintf("%s: %s (HTTP %d)", matrixErr.Code, matrixErr.Message, matrixErr.StatusCode)
	}
	if IsTransport(err) {
		return fmt.Sprintf("%s error: %v", netutil.ClassifyTransportError(err), err)
	}
	return err.Error()
}
