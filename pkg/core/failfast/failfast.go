// Package failfast turns programmer errors into immediate panics.
//
// It is reserved for conditions a caller cannot recover from, such as a
// router that returns an index outside the worker range. Runtime conditions
// (stopped executor, closed mailbox) are reported as errors instead.
package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// Err panics if err != nil
// Includes stack trace for debugging
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics if condition is false
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+message, args...))
	}
}

// InRange panics unless 0 <= idx < n.
func InRange(idx, n int, name string) {
	if idx < 0 || idx >= n {
		panic(fmt.Errorf("fail-fast: %s %d out of range [0, %d)", name, idx, n))
	}
}

// NotNil panics if v is nil, including typed nil pointers and functions.
func NotNil(v interface{}, name string) {
	if v == nil {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func:
		if rv.IsNil() {
			panic(fmt.Errorf("fail-fast: %s is nil", name))
		}
	}
}
