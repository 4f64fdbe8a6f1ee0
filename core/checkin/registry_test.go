package checkin

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(DefaultSettings(), Deps{Encoder: new(fakeEncoder), Clock: clock.NewMock()})
	t.Cleanup(reg.CloseAll)
	return reg
}

func TestRegistry_OpenGetClose(t *testing.T) {
	reg := newTestRegistry(t)

	s := reg.Open(target)
	s.Wait()
	assert.Equal(t, 1, reg.Len())

	got, err := reg.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, reg.Close(s.ID()))
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, reg.Len())

	assert.ErrorIs(t, reg.Close(s.ID()), ErrSessionNotFound)
}

func TestRegistry_ReopenReplacesSession(t *testing.T) {
	reg := newTestRegistry(t)
	base := RunningTimers()

	first := reg.Open(target)
	first.Wait()
	assert.Equal(t, base+1, RunningTimers())

	second := reg.Open(target)
	second.Wait()

	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, StateClosed, first.State())
	assert.Equal(t, StateOpen, second.State())
	assert.Equal(t, base+1, RunningTimers(), "the replaced session released its timer")
	assert.Equal(t, 1, reg.Len())

	_, err := reg.Get(first.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	other := reg.Open(Target{EventID: "ev2", EventName: "Chess Club", CheckInCode: "ABCD"})
	other.Wait()
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, base+2, RunningTimers())

	reg.CloseAll()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, base, RunningTimers())
	assert.Equal(t, StateClosed, second.State())
	assert.Equal(t, StateClosed, other.State())
}

func TestRegistry_CloseKeepsNewerSessionOfEvent(t *testing.T) {
	reg := newTestRegistry(t)

	s := reg.Open(target)
	require.NoError(t, reg.Close(s.ID()))

	s2 := reg.Open(target)
	s2.Wait()
	got, err := reg.Get(s2.ID())
	require.NoError(t, err)
	assert.Equal(t, StateOpen, got.State())
}

func TestRegistry_CloseEvent(t *testing.T) {
	reg := newTestRegistry(t)

	s := reg.Open(target)
	s.Wait()
	assert.False(t, reg.CloseEvent("ev2"))
	assert.True(t, reg.CloseEvent(target.EventID))
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, reg.Len())
	assert.False(t, reg.CloseEvent(target.EventID))
}

func TestRegistry_IdleSessionExpires(t *testing.T) {
	mock := clock.NewMock()
	settings := DefaultSettings()
	settings.IdleTimeout = 10 * time.Minute
	settings.TickInterval = time.Minute
	reg := NewRegistry(settings, Deps{Encoder: new(fakeEncoder), Clock: mock})
	t.Cleanup(reg.CloseAll)
	base := RunningTimers()

	idle := reg.Open(target)
	idle.Wait()
	busy := reg.Open(Target{EventID: "ev2", EventName: "Chess Club", CheckInCode: "ABCD"})
	busy.Wait()
	assert.Equal(t, base+2, RunningTimers())

	// fetching postpones the expiry
	mock.Add(6 * time.Minute)
	_, err := reg.Get(busy.ID())
	require.NoError(t, err)
	mock.Add(6 * time.Minute)

	assert.Eventually(t, func() bool { return idle.State() == StateClosed }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, time.Millisecond)
	_, err = reg.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, StateOpen, busy.State())
	assert.Equal(t, base+1, RunningTimers())

	mock.Add(10 * time.Minute)
	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, StateClosed, busy.State())
	assert.Equal(t, base, RunningTimers())
}

func TestRegistry_ReplacedSessionDoesNotExpireNewer(t *testing.T) {
	mock := clock.NewMock()
	settings := DefaultSettings()
	settings.IdleTimeout = time.Minute
	reg := NewRegistry(settings, Deps{Encoder: new(fakeEncoder), Clock: mock})
	t.Cleanup(reg.CloseAll)

	first := reg.Open(target)
	first.Wait()
	mock.Add(30 * time.Second)
	second := reg.Open(target)
	second.Wait()

	mock.Add(40 * time.Second) // past the expiry of the first one
	time.Sleep(10 * time.Millisecond)
	got, err := reg.Get(second.ID())
	require.NoError(t, err)
	assert.Equal(t, StateOpen, got.State())
}

func TestRegistry_NoIdleTimeout(t *testing.T) {
	mock := clock.NewMock()
	settings := DefaultSettings()
	settings.IdleTimeout = 0
	settings.TickInterval = time.Hour
	reg := NewRegistry(settings, Deps{Encoder: new(fakeEncoder), Clock: mock})
	t.Cleanup(reg.CloseAll)

	s := reg.Open(target)
	s.Wait()
	mock.Add(24 * time.Hour)
	_, err := reg.Get(s.ID())
	assert.NoError(t, err)
	assert.Equal(t, StateOpen, s.State())
}
