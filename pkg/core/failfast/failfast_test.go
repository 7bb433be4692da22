package failfast

import (
	"errors"
	"strings"
	"testing"
)

// recovered runs fn and returns the panic value as an error, or nil.
func recovered(t *testing.T, fn func()) (err error) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				t.Fatalf("Expected error type, got: %T", r)
			}
			err = e
		}
	}()
	fn()
	return nil
}

func TestErr(t *testing.T) {
	if err := recovered(t, func() { Err(nil) }); err != nil {
		t.Errorf("Err(nil) panicked: %v", err)
	}

	sentinel := errors.New("test error")
	err := recovered(t, func() { Err(sentinel) })
	if err == nil {
		t.Fatal("Expected panic, got none")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("panic value %v does not wrap the original error", err)
	}
}

func TestIf(t *testing.T) {
	if err := recovered(t, func() { If(true, "should not panic") }); err != nil {
		t.Errorf("If(true) panicked: %v", err)
	}

	err := recovered(t, func() { If(false, "value is %d", 42) })
	if err == nil {
		t.Fatal("Expected panic, got none")
	}
	if err.Error() != "fail-fast: value is 42" {
		t.Errorf("Expected %q, got %q", "fail-fast: value is 42", err.Error())
	}
}

func TestInRange(t *testing.T) {
	tests := []struct {
		idx, n    int
		wantPanic bool
	}{
		{0, 1, false},
		{3, 4, false},
		{4, 4, true},
		{-1, 4, true},
		{0, 0, true},
	}
	for _, tt := range tests {
		err := recovered(t, func() { InRange(tt.idx, tt.n, "worker index") })
		if (err != nil) != tt.wantPanic {
			t.Errorf("InRange(%d, %d) panic = %v, want %v", tt.idx, tt.n, err, tt.wantPanic)
		}
		if err != nil && !strings.Contains(err.Error(), "worker index") {
			t.Errorf("InRange(%d, %d) message = %q, want name included", tt.idx, tt.n, err.Error())
		}
	}
}

func TestNotNil(t *testing.T) {
	var nilPtr *int
	var nilFunc func()
	x := 1

	tests := []struct {
		name      string
		v         interface{}
		wantPanic bool
	}{
		{"untyped nil", nil, true},
		{"typed nil pointer", nilPtr, true},
		{"nil func", nilFunc, true},
		{"pointer", &x, false},
		{"func", func() {}, false},
		{"value", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := recovered(t, func() { NotNil(tt.v, "thing") })
			if (err != nil) != tt.wantPanic {
				t.Errorf("NotNil() panic = %v, want %v", err, tt.wantPanic)
			}
			if err != nil && err.Error() != "fail-fast: thing is nil" {
				t.Errorf("message = %q", err.Error())
			}
		})
	}
}
