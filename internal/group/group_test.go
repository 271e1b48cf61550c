package group

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/device-input/internal/callback"
	"github.com/sweeney/device-input/internal/input"
)

type fakeClock struct {
	now  time.Duration
	step time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.now += c.step
	return c.now
}

func scripted(samples ...int) input.ReadFunc[int] {
	i := 0
	return func() (int, error) {
		v := samples[i]
		if i < len(samples)-1 {
			i++
		}
		return v, nil
	}
}

func newInput(t *testing.T, clock input.Clock, exact int, samples ...int) *input.Input[int] {
	t.Helper()
	in, err := input.New(scripted(samples...), input.Config[int]{Exact: &exact, Clock: clock})
	require.NoError(t, err)
	return in
}

// stubMember counts updates and returns a scripted result.
type stubMember struct {
	updates  int
	polls    bool
	err      error
	registry *callback.Registry
}

func newStub(capacity int) *stubMember {
	return &stubMember{polls: true, registry: callback.NewRegistry(capacity)}
}

func (s *stubMember) Update() (bool, error) {
	s.updates++
	if s.err != nil {
		return false, s.err
	}
	return s.polls, nil
}

func (s *stubMember) Callbacks() *callback.Registry { return s.registry }

func TestNew(t *testing.T) {
	a, b := newStub(0), newStub(0)
	g, err := New(Config{Members: []Member{a, b}})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Same(t, a, g.Member(0))
	assert.Same(t, b, g.Member(1))
	assert.Nil(t, g.Member(2))
	assert.Nil(t, g.Member(-1))
}

func TestNewRejectsTooManyMembers(t *testing.T) {
	_, err := New(Config{Capacity: 1, Members: []Member{newStub(0), newStub(0)}})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestNewRejectsNegativeInterval(t *testing.T) {
	_, err := New(Config{Interval: -time.Second})
	assert.ErrorIs(t, err, input.ErrInvalidInterval)
}

func TestAdd(t *testing.T) {
	g, err := New(Config{Capacity: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, g.Add(nil), ErrNilMember)
	require.NoError(t, g.Add(newStub(0)))
	require.NoError(t, g.Add(newStub(0)))
	assert.ErrorIs(t, g.Add(newStub(0)), ErrCapacityExceeded)
	assert.Equal(t, 2, g.Len())
}

func TestSetIsAllOrNothing(t *testing.T) {
	keep := newStub(0)
	g, err := New(Config{Capacity: 2, Members: []Member{keep}})
	require.NoError(t, err)

	assert.ErrorIs(t, g.Set(newStub(0), newStub(0), newStub(0)), ErrCapacityExceeded)
	assert.ErrorIs(t, g.Set(newStub(0), nil), ErrNilMember)
	require.Equal(t, 1, g.Len())
	assert.Same(t, keep, g.Member(0))

	require.NoError(t, g.Set(newStub(0), newStub(0)))
	assert.Equal(t, 2, g.Len())

	g.Clear()
	assert.Equal(t, 0, g.Len())
}

func TestMembersReturnsCopy(t *testing.T) {
	g, err := New(Config{Members: []Member{newStub(0)}})
	require.NoError(t, err)
	ms := g.Members()
	ms[0] = nil
	assert.NotNil(t, g.Member(0))
}

func TestUpdateAllForwards(t *testing.T) {
	a, b := newStub(0), newStub(0)
	a.polls = false
	g, err := New(Config{Members: []Member{a, b}})
	require.NoError(t, err)

	polled, err := g.UpdateAll()
	require.NoError(t, err)
	assert.True(t, polled, "one member polling is enough")
	assert.Equal(t, 1, a.updates)
	assert.Equal(t, 1, b.updates)

	b.polls = false
	polled, err = g.UpdateAll()
	require.NoError(t, err)
	assert.False(t, polled)
}

func TestUpdateAllSharedCadence(t *testing.T) {
	clock := &fakeClock{step: 30 * time.Millisecond}
	a := newStub(0)
	g, err := New(Config{Interval: 100 * time.Millisecond, Clock: clock.Now, Members: []Member{a}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		polled, err := g.UpdateAll()
		require.NoError(t, err)
		assert.False(t, polled, "call %d should be throttled", i)
	}
	assert.Equal(t, 0, a.updates, "throttled group must not touch members")

	polled, err := g.UpdateAll()
	require.NoError(t, err)
	assert.True(t, polled)
	assert.Equal(t, 1, a.updates)
}

func TestUpdateAllMemberCadenceStillApplies(t *testing.T) {
	groupClock := &fakeClock{step: 50 * time.Millisecond}
	memberClock := &fakeClock{step: 50 * time.Millisecond}
	slow, err := input.New(scripted(1), input.Config[int]{Interval: 200 * time.Millisecond, Clock: memberClock.Now})
	require.NoError(t, err)

	g, err := New(Config{Interval: 50 * time.Millisecond, Clock: groupClock.Now, Members: []Member{slow}})
	require.NoError(t, err)

	polled, err := g.UpdateAll()
	require.NoError(t, err)
	assert.False(t, polled, "group passed but member is still throttled")
}

func TestUpdateAllCollectsErrors(t *testing.T) {
	a, b, c := newStub(0), newStub(0), newStub(0)
	a.err = errors.New("a failed")
	c.err = errors.New("c failed")
	g, err := New(Config{Members: []Member{a, b, c}})
	require.NoError(t, err)

	polled, err := g.UpdateAll()
	assert.True(t, polled)
	require.Error(t, err)
	assert.ErrorIs(t, err, a.err)
	assert.ErrorIs(t, err, c.err)
	assert.Equal(t, 1, b.updates, "later members still update")
	assert.Equal(t, 1, c.updates)
}

func TestForAllFanOut(t *testing.T) {
	clock := &fakeClock{step: time.Millisecond}
	m1 := newInput(t, clock.Now, 10, 10)    // toggles on tick 1
	m2 := newInput(t, clock.Now, 10, 1, 10) // toggles on tick 2
	m3 := newInput(t, clock.Now, 10, 1, 1)  // never toggles
	g, err := New(Config{Members: []Member{m1, m2, m3}})
	require.NoError(t, err)

	calls := 0
	res := g.ForAll(callback.Toggle, func() { calls++ })
	require.True(t, res.OK())
	assert.Equal(t, 3, res.Applied)

	_, err = g.UpdateAll()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = g.UpdateAll()
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	_, err = g.UpdateAll()
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "no further toggles")
}

func TestForAllPartialFailure(t *testing.T) {
	full := newStub(1)
	require.NoError(t, full.registry.Add(callback.Toggle, func() {}))
	a, c := newStub(1), newStub(1)
	g, err := New(Config{Members: []Member{a, full, c}})
	require.NoError(t, err)

	res := g.ForAll(callback.Toggle, func() {})
	assert.False(t, res.OK())
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.ErrorIs(t, res.Err(), ErrCapacityExceeded)
	assert.Equal(t, 1, c.registry.Len(callback.Toggle), "members after the failure are still applied")
}

func TestSetForAll(t *testing.T) {
	a, b := newStub(2), newStub(1)
	g, err := New(Config{Members: []Member{a, b}})
	require.NoError(t, err)

	h := func() {}
	res := g.SetForAll(callback.Detected, h, h)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, 2, a.registry.Len(callback.Detected))
	assert.Equal(t, 0, b.registry.Len(callback.Detected))
}

func TestAddAllForAll(t *testing.T) {
	a, full, c := newStub(1), newStub(1), newStub(1)
	require.NoError(t, full.registry.Add(callback.Untoggle, func() {}))
	g, err := New(Config{Members: []Member{a, full, c}})
	require.NoError(t, err)

	regs := []callback.Registration{
		{Kind: callback.Toggle, Handle: func() {}},
		{Kind: callback.Untoggle, Handle: func() {}},
	}
	res := g.AddAllForAll(regs)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.ErrorIs(t, res.Err(), ErrCapacityExceeded)

	for _, s := range []*stubMember{a, c} {
		assert.Equal(t, 1, s.registry.Len(callback.Toggle))
		assert.Equal(t, 1, s.registry.Len(callback.Untoggle))
	}
	assert.Equal(t, 1, full.registry.Len(callback.Toggle), "registrations before the failure stay")
}

func TestSetAllForAll(t *testing.T) {
	a, small, c := newStub(2), newStub(1), newStub(2)
	for _, s := range []*stubMember{a, small, c} {
		require.NoError(t, s.registry.Add(callback.Detected, func() {}))
	}
	g, err := New(Config{Members: []Member{a, small, c}})
	require.NoError(t, err)

	regs := []callback.Registration{
		{Kind: callback.Toggle, Handle: func() {}},
		{Kind: callback.Untoggle, Handle: func() {}},
		{Kind: callback.Untoggle, Handle: func() {}},
	}
	res := g.SetAllForAll(regs)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.ErrorIs(t, res.Err(), ErrCapacityExceeded)

	for _, s := range []*stubMember{a, c} {
		assert.Equal(t, 1, s.registry.Len(callback.Toggle))
		assert.Equal(t, 2, s.registry.Len(callback.Untoggle))
		assert.Equal(t, 1, s.registry.Len(callback.Detected), "unnamed kinds keep their callbacks")
	}
	assert.False(t, small.registry.Has(callback.Toggle), "failing member takes nothing")
	assert.False(t, small.registry.Has(callback.Untoggle))
	assert.Equal(t, 1, small.registry.Len(callback.Detected))
}

func TestClearForAll(t *testing.T) {
	a, b := newStub(0), newStub(0)
	for _, s := range []*stubMember{a, b} {
		s.registry.Add(callback.Toggle, func() {})
		s.registry.Add(callback.Untoggle, func() {})
	}
	g, err := New(Config{Members: []Member{a, b}})
	require.NoError(t, err)

	res := g.ClearForAll(callback.Toggle)
	assert.True(t, res.OK())
	assert.Equal(t, 2, res.Applied)
	assert.False(t, a.registry.Has(callback.Toggle))
	assert.True(t, a.registry.Has(callback.Untoggle))

	res = g.ClearForAll(callback.Kind("nope"))
	assert.Equal(t, 0, res.Applied)
	assert.ErrorIs(t, res.Err(), callback.ErrUnknownKind)

	res = g.ClearAllForAll()
	assert.Equal(t, 2, res.Applied)
	assert.False(t, b.registry.HasAny())
}

func TestEnableDisableAll(t *testing.T) {
	a, b := newStub(0), newStub(0)
	g, err := New(Config{Members: []Member{a, b}})
	require.NoError(t, err)

	g.DisableAll()
	assert.True(t, a.registry.Disabled())
	assert.True(t, b.registry.Disabled())

	g.EnableAll()
	assert.True(t, a.registry.Enabled())
	assert.True(t, b.registry.Enabled())
}

func TestMixedReadingTypes(t *testing.T) {
	clock := &fakeClock{step: time.Millisecond}
	ints := newInput(t, clock.Now, 1, 1)
	lo, hi := 20.0, 25.0
	floats, err := input.New(func() (float64, error) { return 21.5, nil },
		input.Config[float64]{Range: &input.Bounds[float64]{Min: lo, Max: hi}, Clock: clock.Now})
	require.NoError(t, err)

	g, err := New(Config{Members: []Member{ints, floats}})
	require.NoError(t, err)

	calls := 0
	g.ForAll(callback.Toggle, func() { calls++ })
	_, err = g.UpdateAll()
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestResultErrNil(t *testing.T) {
	var r Result
	assert.True(t, r.OK())
	assert.NoError(t, r.Err())
}
