// Package callback holds per-input callback registrations, organised by event kind.
// It knows nothing about readings or detection: the owner reports which events
// fired through the Events interface and the registry dispatches them.
package callback

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an input event.
type Kind string

const (
	RisingReading  Kind = "RISING_READING"
	FallingReading Kind = "FALLING_READING"
	Detected       Kind = "DETECTED"
	Undetected     Kind = "UNDETECTED"
	Toggle         Kind = "TOGGLE"
	Untoggle       Kind = "UNTOGGLE"
)

// Kinds lists every event kind in dispatch order.
var Kinds = []Kind{RisingReading, FallingReading, Detected, Undetected, Toggle, Untoggle}

// DefaultCapacity is the per-kind capacity used when none is configured.
const DefaultCapacity = 3

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNilHandle        = errors.New("nil callback handle")
	ErrUnknownKind      = errors.New("unknown event kind")
)

// Handle is a registered callback.
type Handle func()

// Registration pairs a kind with a handle, for bulk configuration.
type Registration struct {
	Kind   Kind
	Handle Handle
}

// Events reports which events fired on the owner's most recent tick.
type Events interface {
	RisingReading() bool
	FallingReading() bool
	Detected() bool
	Undetected() bool
	Toggled() bool
	Untoggled() bool
}

// ParseKind returns the Kind named by s, ignoring case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Registry owns the callbacks of one input.
// Not safe for concurrent use; it must not be mutated while the owner dispatches.
type Registry struct {
	capacity int
	handles  map[Kind][]Handle
	disabled bool
}

// NewRegistry creates an enabled registry. A capacity of 0 lets every kind grow
// without bound; a negative capacity selects DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity < 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		handles:  make(map[Kind][]Handle, len(Kinds)),
	}
}

// Capacity returns the per-kind bound (0 = unbounded).
func (r *Registry) Capacity() int {
	return r.capacity
}

// Add appends h to the callbacks for kind.
func (r *Registry) Add(kind Kind, h Handle) error {
	if !kind.Valid() {
		return fmt.Errorf("add %q: %w", kind, ErrUnknownKind)
	}
	if h == nil {
		return fmt.Errorf("add %s: %w", kind, ErrNilHandle)
	}
	if r.full(kind, 1) {
		return fmt.Errorf("add %s (%d/%d): %w", kind, len(r.handles[kind]), r.capacity, ErrCapacityExceeded)
	}
	r.handles[kind] = append(r.handles[kind], h)
	return nil
}

// AddAll adds each registration in order and stops at the first failure.
// Registrations before the failing one stay applied.
func (r *Registry) AddAll(regs []Registration) error {
	for i, reg := range regs {
		if err := r.Add(reg.Kind, reg.Handle); err != nil {
			return fmt.Errorf("registration %d: %w", i, err)
		}
	}
	return nil
}

// Set replaces the callbacks for kind with hs. Either all of hs is installed
// or, on error, the existing callbacks are left as they were.
func (r *Registry) Set(kind Kind, hs ...Handle) error {
	if !kind.Valid() {
		return fmt.Errorf("set %q: %w", kind, ErrUnknownKind)
	}
	for i, h := range hs {
		if h == nil {
			return fmt.Errorf("set %s handle %d: %w", kind, i, ErrNilHandle)
		}
	}
	if r.capacity > 0 && len(hs) > r.capacity {
		return fmt.Errorf("set %s (%d/%d): %w", kind, len(hs), r.capacity, ErrCapacityExceeded)
	}
	r.handles[kind] = append([]Handle(nil), hs...)
	return nil
}

// SetAll replaces the callbacks of every kind named in regs with the handles
// regs gives that kind, in order. Kinds not named keep their callbacks. On
// error nothing changes.
func (r *Registry) SetAll(regs []Registration) error {
	next := make(map[Kind][]Handle, len(Kinds))
	for i, reg := range regs {
		if !reg.Kind.Valid() {
			return fmt.Errorf("registration %d: set %q: %w", i, reg.Kind, ErrUnknownKind)
		}
		if reg.Handle == nil {
			return fmt.Errorf("registration %d: set %s: %w", i, reg.Kind, ErrNilHandle)
		}
		next[reg.Kind] = append(next[reg.Kind], reg.Handle)
		if n := len(next[reg.Kind]); r.capacity > 0 && n > r.capacity {
			return fmt.Errorf("registration %d: set %s (%d/%d): %w", i, reg.Kind, n, r.capacity, ErrCapacityExceeded)
		}
	}
	for k, hs := range next {
		r.handles[k] = hs
	}
	return nil
}

// Clear removes every callback for kind.
func (r *Registry) Clear(kind Kind) {
	delete(r.handles, kind)
}

// ClearAll removes every callback of every kind.
func (r *Registry) ClearAll() {
	for _, k := range Kinds {
		delete(r.handles, k)
	}
}

func (r *Registry) Enable()  { r.disabled = false }
func (r *Registry) Disable() { r.disabled = true }

func (r *Registry) Enabled() bool  { return !r.disabled }
func (r *Registry) Disabled() bool { return r.disabled }

// Len returns the number of callbacks registered for kind.
func (r *Registry) Len(kind Kind) int {
	return len(r.handles[kind])
}

// Has reports whether kind has at least one callback, regardless of the enabled flag.
func (r *Registry) Has(kind Kind) bool {
	return len(r.handles[kind]) > 0
}

// HasAny reports whether any kind has a callback.
func (r *Registry) HasAny() bool {
	for _, k := range Kinds {
		if r.Has(k) {
			return true
		}
	}
	return false
}

// Active reports whether dispatching kind would run anything.
func (r *Registry) Active(kind Kind) bool {
	return !r.disabled && r.Has(kind)
}

// Dispatch runs the callbacks for kind in registration order on the calling
// goroutine. A panicking callback is not recovered and the remaining callbacks
// for kind do not run. Returns false if kind was not active.
func (r *Registry) Dispatch(kind Kind) bool {
	if !r.Active(kind) {
		return false
	}
	for _, h := range r.handles[kind] {
		h()
	}
	return true
}

// Run dispatches every kind ev reports as fired, in Kinds order, and returns
// how many kinds were dispatched.
func (r *Registry) Run(ev Events) int {
	if r.disabled {
		return 0
	}
	fired := [...]bool{
		ev.RisingReading(),
		ev.FallingReading(),
		ev.Detected(),
		ev.Undetected(),
		ev.Toggled(),
		ev.Untoggled(),
	}
	n := 0
	for i, k := range Kinds {
		if fired[i] && r.Dispatch(k) {
			n++
		}
	}
	return n
}

func (r *Registry) full(kind Kind, adding int) bool {
	return r.capacity > 0 && len(r.handles[kind])+adding > r.capacity
}
