package group

import (
	"errors"
	"fmt"
)

// Result reports how a bulk registration went across members.
type Result struct {
	// Applied counts the members the operation succeeded on.
	Applied int
	// Failures lists the members it failed on, in member order.
	Failures []Failure
}

// Failure is one member's error from a bulk operation.
type Failure struct {
	Index int
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("member %d: %v", f.Index, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// OK reports whether no member failed.
func (r Result) OK() bool {
	return len(r.Failures) == 0
}

// Err joins the failures, or returns nil when there were none.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
