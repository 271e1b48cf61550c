// Package group drives many inputs through one update cycle and fans callback
// registrations out to all of them.
package group

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/device-input/internal/callback"
	"github.com/sweeney/device-input/internal/input"
)

// DefaultCapacity is a conventional member bound for constrained hosts.
const DefaultCapacity = 12

var (
	ErrCapacityExceeded = callback.ErrCapacityExceeded
	ErrNilMember        = errors.New("nil member")
)

// Member is one input driven by a Group. *input.Input[T] satisfies it for any T.
type Member interface {
	Update() (bool, error)
	Callbacks() *callback.Registry
}

// Config holds the construction options of a Group.
type Config struct {
	// Capacity bounds the number of members; 0 is unbounded.
	Capacity int

	// Interval is a cadence shared by the whole group; 0 leaves throttling
	// to each member.
	Interval time.Duration

	// Clock defaults to input.NewSystemClock().
	Clock input.Clock

	Members []Member
}

// Group holds references to members it does not own.
// Not safe for concurrent use.
type Group struct {
	capacity int
	interval time.Duration
	lastPoll time.Duration
	clock    input.Clock
	members  []Member
}

// New creates a Group and adds cfg.Members in order.
func New(cfg Config) (*Group, error) {
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("%w: %v", input.ErrInvalidInterval, cfg.Interval)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = input.NewSystemClock()
	}
	g := &Group{
		capacity: cfg.Capacity,
		interval: cfg.Interval,
		clock:    clock,
	}
	if err := g.Set(cfg.Members...); err != nil {
		return nil, err
	}
	return g, nil
}

// Add appends m.
func (g *Group) Add(m Member) error {
	if m == nil {
		return ErrNilMember
	}
	if g.capacity > 0 && len(g.members) >= g.capacity {
		return fmt.Errorf("add member (%d/%d): %w", len(g.members), g.capacity, ErrCapacityExceeded)
	}
	g.members = append(g.members, m)
	return nil
}

// Set replaces all members. On error the previous members are kept.
func (g *Group) Set(ms ...Member) error {
	for i, m := range ms {
		if m == nil {
			return fmt.Errorf("member %d: %w", i, ErrNilMember)
		}
	}
	if g.capacity > 0 && len(ms) > g.capacity {
		return fmt.Errorf("set members (%d/%d): %w", len(ms), g.capacity, ErrCapacityExceeded)
	}
	g.members = append([]Member(nil), ms...)
	return nil
}

// Clear removes every member.
func (g *Group) Clear() {
	g.members = nil
}

func (g *Group) Len() int { return len(g.members) }

// Member returns the member at index i, or nil when out of range.
func (g *Group) Member(i int) Member {
	if i < 0 || i >= len(g.members) {
		return nil
	}
	return g.members[i]
}

// Members returns a copy of the member list.
func (g *Group) Members() []Member {
	return append([]Member(nil), g.members...)
}

// SetInterval sets the shared cadence; 0 disables it.
func (g *Group) SetInterval(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %v", input.ErrInvalidInterval, d)
	}
	g.interval = d
	return nil
}

func (g *Group) Interval() time.Duration { return g.interval }

// UpdateAll updates every member in order and reports whether any of them
// polled. With a shared interval the group throttles once for all members.
// A member's read error does not stop later members; all such errors are
// returned joined.
func (g *Group) UpdateAll() (bool, error) {
	if g.interval > 0 {
		now := g.clock()
		if now-g.lastPoll < g.interval {
			return false, nil
		}
		g.lastPoll = now
	}

	var (
		polled bool
		errs   []error
	)
	for i, m := range g.members {
		ok, err := m.Update()
		if err != nil {
			errs = append(errs, fmt.Errorf("member %d: %w", i, err))
			continue
		}
		polled = polled || ok
	}
	return polled, errors.Join(errs...)
}

// ForAll adds h for kind on every member.
func (g *Group) ForAll(kind callback.Kind, h callback.Handle) Result {
	return g.each(func(r *callback.Registry) error {
		return r.Add(kind, h)
	})
}

// SetForAll replaces the callbacks for kind on every member.
func (g *Group) SetForAll(kind callback.Kind, hs ...callback.Handle) Result {
	return g.each(func(r *callback.Registry) error {
		return r.Set(kind, hs...)
	})
}

// AddAllForAll adds every registration to every member. On a member that
// fails, registrations before the failing one stay applied.
func (g *Group) AddAllForAll(regs []callback.Registration) Result {
	return g.each(func(r *callback.Registry) error {
		return r.AddAll(regs)
	})
}

// SetAllForAll replaces, on every member, the callbacks of each kind named in
// regs. A member either takes all of regs or keeps its callbacks.
func (g *Group) SetAllForAll(regs []callback.Registration) Result {
	return g.each(func(r *callback.Registry) error {
		return r.SetAll(regs)
	})
}

// ClearForAll removes the callbacks for kind on every member.
func (g *Group) ClearForAll(kind callback.Kind) Result {
	if !kind.Valid() {
		return g.each(func(*callback.Registry) error {
			return fmt.Errorf("clear %q: %w", kind, callback.ErrUnknownKind)
		})
	}
	return g.each(func(r *callback.Registry) error {
		r.Clear(kind)
		return nil
	})
}

// ClearAllForAll removes every callback on every member.
func (g *Group) ClearAllForAll() Result {
	return g.each(func(r *callback.Registry) error {
		r.ClearAll()
		return nil
	})
}

// EnableAll enables callbacks on every member.
func (g *Group) EnableAll() Result {
	return g.each(func(r *callback.Registry) error {
		r.Enable()
		return nil
	})
}

// DisableAll disables callbacks on every member.
func (g *Group) DisableAll() Result {
	return g.each(func(r *callback.Registry) error {
		r.Disable()
		return nil
	})
}

func (g *Group) each(fn func(*callback.Registry) error) Result {
	var res Result
	for i, m := range g.members {
		if err := fn(m.Callbacks()); err != nil {
			res.Failures = append(res.Failures, Failure{Index: i, Err: err})
			continue
		}
		res.Applied++
	}
	return res
}
