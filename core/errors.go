package core

import (
	"strings"

	"github.com/pkg/errors"
)

// FieldError reports a problem with a single named field of a request payload.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries per-field errors for a rejected payload.
// Handlers map it to a 400 response.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	flds := make([]string, 0, len(err.Fields))
	for _, fld := range err.Fields {
		flds = append(flds, fld.Field+": "+fld.Error)
	}
	if len(flds) == 0 {
		return "invalid input"
	}
	return strings.Join(flds, "; ")
}

// shutdownError signals an unrecoverable fault; the server loop stops on it.
type shutdownError struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdownError{message: msg}
}

func (err shutdownError) Error() string { return err.message }

// IsShutdown reports whether err (or its cause) asks for a shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdownError)
	return ok
}
