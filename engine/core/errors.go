package core

import (
	"fmt"
	"strings"
)

// MultiError aggregates errors from operations that must run to completion
// even when individual steps fail, such as shutdown sequences.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if m == nil || len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(m.Errors), strings.Join(msgs, "; "))
}

func (m *MultiError) Unwrap() []error {
	if m == nil {
		return nil
	}
	return m.Errors
}

// AppendError adds err to multi, allocating it on first use. A nil err is
// ignored so callers can append unconditionally.
func AppendError(multi *MultiError, err error) *MultiError {
	if err == nil {
		return multi
	}
	if multi == nil {
		multi = &MultiError{}
	}
	multi.Errors = append(multi.Errors, err)
	return multi
}

// ErrorOrNil collapses an empty MultiError to nil so callers can return it
// directly.
func (m *MultiError) ErrorOrNil() error {
	if m == nil || len(m.Errors) == 0 {
		return nil
	}
	return m
}
