package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Programmer errors: the host called the API incorrectly.
var (
	ErrInvalidConfig      = errors.New("invalid config")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrUnsupportedCommand = errors.New("command not supported by this mission")
)

// User-facing errors: expected conditions the host renders as feedback.
var (
	ErrNoEntitySelected    = errors.New("no entity selected")
	ErrAlreadyConfigured   = errors.New("entity already configured")
	ErrInsufficientQuality = errors.New("insufficient quality")
	ErrObjectiveMismatch   = errors.New("configuration does not match objective")
)

// MismatchError reports which fields of an apply differed from the objective
type MismatchError struct {
	Entity int
	Fields []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: entity %d differs in %s", ErrObjectiveMismatch, e.Entity, strings.Join(e.Fields, ", "))
}

func (e *MismatchError) Unwrap() error {
	return ErrObjectiveMismatch
}

// IsUserFacing reports whether err is an expected gameplay rejection
func IsUserFacing(err error) bool {
	return errors.Is(err, ErrNoEntitySelected) ||
		errors.Is(err, ErrAlreadyConfigured) ||
		errors.Is(err, ErrInsufficientQuality) ||
		errors.Is(err, ErrObjectiveMismatch)
}

// ErrorKind returns a machine-friendly code for err, or "" when it is not an engine error
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoEntitySelected):
		return "no_entity_selected"
	case errors.Is(err, ErrAlreadyConfigured):
		return "already_configured"
	case errors.Is(err, ErrInsufficientQuality):
		return "insufficient_quality"
	case errors.Is(err, ErrObjectiveMismatch):
		return "objective_mismatch"
	case errors.Is(err, ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, ErrUnknownParameter):
		return "unknown_parameter"
	case errors.Is(err, ErrUnsupportedCommand):
		return "unsupported_command"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	}
	return ""
}
