package datasets

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-datasets/flags"
)

var (
	ErrUnacceptedFlag        = errors.New("datasets: flag not accepted")
	ErrConfigType            = errors.New("datasets: unsupported config type")
	ErrAttributeType         = errors.New("datasets: attribute values must be scalars")
	ErrFlagNotFound          = errors.New("datasets: flag not recognized by any child")
	ErrNotImplemented        = errors.New("datasets: not implemented")
	ErrParentNotSet          = errors.New("datasets: parent dataset was never set")
	ErrParentAlreadySet      = errors.New("datasets: parent dataset can only be set once")
	ErrParentType            = errors.New("datasets: parent must be a link collection")
	ErrChildType             = errors.New("datasets: child dataset has the wrong type")
	ErrDatasetNotFound       = errors.New("datasets: dataset not found")
	ErrEmptyCollection       = errors.New("datasets: collection has no datasets")
	ErrInterpreterRegistered = errors.New("datasets: interpreter already registered")
	ErrNilInterpreter        = errors.New("datasets: interpreter factory must not be nil")
	ErrNilRegistry           = errors.New("datasets: interpreter registry must not be nil")
)

// UnacceptedFlagError is returned when Fetch is called with a flag outside
// the accepted set of a dataset.
type UnacceptedFlagError struct {
	Dataset string
	Kind    string
	Flag    flags.Flag
}

func (e *UnacceptedFlagError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("datasets: flag %q not accepted by dataset %q of kind %s", e.Flag, e.Dataset, e.Kind)
}

func (e *UnacceptedFlagError) Unwrap() error { return ErrUnacceptedFlag }

// ConfigTypeError reports a value that is neither a Config nor a plain map.
type ConfigTypeError struct {
	Got any
	Err error
}

func (e *ConfigTypeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil && !errors.Is(e.Err, ErrConfigType) {
		return fmt.Sprintf("datasets: config of type %T: %v", e.Got, e.Err)
	}
	return fmt.Sprintf("datasets: config must be a Config or a string-keyed map, got %T", e.Got)
}

func (e *ConfigTypeError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil || errors.Is(e.Err, ErrConfigType) {
		return []error{ErrConfigType}
	}
	return []error{ErrConfigType, e.Err}
}

// LookupError is returned when no child of a collection can serve a flag.
type LookupError struct {
	Collection string
	Flag       flags.Flag
}

func (e *LookupError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("datasets: flag %q not recognized by any child of %q", e.Flag, e.Collection)
}

func (e *LookupError) Unwrap() error { return ErrFlagNotFound }

// NotImplementedError marks compositions whose semantics are undefined, such
// as summing text or concatenating frames with different axes.
type NotImplementedError struct {
	Op     string
	Reason string
	Err    error
}

func (e *NotImplementedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("datasets: %s not implemented: %s", e.Op, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotImplementedError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{ErrNotImplemented}
	}
	return []error{ErrNotImplemented, e.Err}
}

func notImplemented(op, reason string, err error) error {
	return &NotImplementedError{Op: op, Reason: reason, Err: err}
}
