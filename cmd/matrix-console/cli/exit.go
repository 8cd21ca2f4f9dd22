// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ExitError signals a non-zero exit code without printing an extra
// error message. The command has already written its own output: an
// alert for a failed invocation, or the error list of a bulk run.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitStatus returns the process exit status for err and whether an
// "error:" line should still be printed. Nil is success.
func ExitStatus(err error) (code int, report bool) {
	if err == nil {
		return 0, false
	}
	var exitError *ExitError
	if errors.As(err, &exitError) {
		return exitError.Code, false
	}
	var toolError *ToolError
	if errors.As(err, &toolError) {
		return toolError.ExitCode(), true
	}
	return 1, true
}
