package hxstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for rendering operations.
var (
	ErrComponentNotFound  = errors.New("hxstream: component not found")
	ErrStoreNotFound      = errors.New("hxstream: store not found")
	ErrActionNotSupported = errors.New("hxstream: store does not handle actions")
	ErrResponseState      = errors.New("hxstream: response already finalized")
)

// IsNotFound checks if err is a missing component or store error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrComponentNotFound) || errors.Is(err, ErrStoreNotFound)
}

// ComponentError wraps a failure raised while loading or rendering one
// component. It never aborts the page; it is reported to the Observer.
type ComponentError struct {
	Component string
	Err       error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("hxstream: component %q: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}
