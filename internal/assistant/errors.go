package assistant

import (
	"errors"
	"fmt"
)

// ValidationError reports input rejected before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrConflictingModes is returned when thinking and search grounding are
// requested together.
var ErrConflictingModes = &ValidationError{
	Field:   "mode",
	Message: "thinking mode and search grounding cannot be used together",
}

// FileError reports an attachment that could not be read or decoded.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// UpstreamError carries a failed model API call. The original error is kept
// intact so callers can inspect it.
type UpstreamError struct {
	Model string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Gemini API error (%s): %v", e.Model, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
