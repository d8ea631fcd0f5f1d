package hxstream

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrComponentNotFound, "hxstream: component not found"},
		{ErrStoreNotFound, "hxstream: store not found"},
		{ErrActionNotSupported, "hxstream: store does not handle actions"},
		{ErrResponseState, "hxstream: response already finalized"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"component", ErrComponentNotFound, true},
		{"store", ErrStoreNotFound, true},
		{"wrapped", fmt.Errorf("lookup: %w", ErrComponentNotFound), true},
		{"action", ErrActionNotSupported, false},
		{"other", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestComponentError(t *testing.T) {
	inner := fmt.Errorf("load: %w", ErrStoreNotFound)
	err := error(&ComponentError{Component: "news", Err: inner})

	if !errors.Is(err, ErrStoreNotFound) {
		t.Error("ComponentError should unwrap")
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should see through ComponentError")
	}
	if got := err.Error(); got != `hxstream: component "news": load: hxstream: store not found` {
		t.Errorf("Error() = %q", got)
	}

	var ce *ComponentError
	if !errors.As(fmt.Errorf("render: %w", err), &ce) || ce.Component != "news" {
		t.Errorf("errors.As did not find the component error: %v", ce)
	}
}
