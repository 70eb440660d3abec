package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies forecast failures for callers.
type ErrorKind string

const (
	ErrKindData   ErrorKind = "data"
	ErrKindConfig ErrorKind = "config"
	ErrKindFit    ErrorKind = "fit"
)

// ForecastError tags an underlying error with its kind.
type ForecastError struct {
	Kind ErrorKind
	Err  error
}

func (e *ForecastError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *ForecastError) Unwrap() error { return e.Err }

// NewForecastError wraps err with kind. A nil err stays nil.
func NewForecastError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &ForecastError{Kind: kind, Err: err}
}

// KindOf returns the kind of a ForecastError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var fe *ForecastError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
