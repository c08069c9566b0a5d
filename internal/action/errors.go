// internal/action/errors.go
package action

import (
	"errors"
	"fmt"
)

// Error kinds returned by actions. Match them with errors.Is; the message of
// a returned error is the operator-facing text.
var (
	ErrRegionNotFound        = errors.New("region not found")
	ErrCaptureFailed         = errors.New("capture failed")
	ErrOCRFailed             = errors.New("ocr extraction failed")
	ErrOCRUnavailable        = errors.New("ocr unavailable")
	ErrMissingPrompt         = errors.New("missing continuation prompt")
	ErrEmptyPrompt           = errors.New("empty continuation prompt")
	ErrPromptTooLong         = errors.New("continuation prompt too long")
	ErrRiskThresholdExceeded = errors.New("risk threshold exceeded")
	ErrUnknownCheckType      = errors.New("unknown check type")
	ErrInvalidPattern        = errors.New("invalid pattern")
)

// Error pairs an error kind with the message shown to the operator.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func fail(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func failWith(kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}
