package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk I/O error")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func outcome(success bool) func() error {
	return func() error {
		if success {
			return nil
		}
		return errDisk
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tripAt := func(n uint32) func(Counts) bool {
		return func(c Counts) bool { return c.ConsecutiveFailures >= n }
	}
	tests := []struct {
		name     string
		settings Settings
		calls    []bool
		advance  time.Duration
		want     State
	}{
		{"stays closed on successes", Settings{}, []bool{true, true, true}, 0, StateClosed},
		{"success resets the streak", Settings{Trip: tripAt(2)}, []bool{false, true, false}, 0, StateClosed},
		{"opens after consecutive failures", Settings{Trip: tripAt(3)}, []bool{false, false, false}, 0, StateOpen},
		{"half-open after cooldown", Settings{Trip: tripAt(2), Cooldown: time.Second}, []bool{false, false}, 2 * time.Second, StateHalfOpen},
		{"window expiry forgets failures", Settings{Trip: tripAt(2), Window: time.Second}, []bool{false}, 2 * time.Second, StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClock()
			tt.settings.Now = c.Now
			b := New("sqlite", tt.settings)

			for _, ok := range tt.calls {
				_ = b.Do(outcome(ok))
			}
			c.Advance(tt.advance)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b := New("sqlite", Settings{})

	require.NoError(t, b.Do(outcome(true)))
	counts := b.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.Successes)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	assert.ErrorIs(t, b.Do(outcome(false)), errDisk)
	counts = b.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.Failures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Zero(t, counts.ConsecutiveSuccesses)
}

func TestOpenBreakerFailsFast(t *testing.T) {
	b := New("sqlite", Settings{Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 }})
	_ = b.Do(outcome(false))
	_ = b.Do(outcome(false))

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestHalfOpenProbes(t *testing.T) {
	c := newClock()
	b := New("sqlite", Settings{
		Probes:   2,
		Cooldown: time.Second,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		Now:      c.Now,
	})

	_ = b.Do(outcome(false))
	c.Advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(outcome(true)))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(outcome(true)))
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	c := newClock()
	b := New("sqlite", Settings{
		Cooldown: time.Second,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		Now:      c.Now,
	})

	_ = b.Do(outcome(false))
	c.Advance(2 * time.Second)
	_ = b.Do(outcome(false))
	assert.Equal(t, StateOpen, b.State())
}

func TestStateChangeCallback(t *testing.T) {
	c := newClock()
	var transitions []string
	b := New("sqlite", Settings{
		Cooldown: time.Second,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		Now:      c.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = b.Do(outcome(false))
	c.Advance(2 * time.Second)
	_ = b.Do(outcome(true))

	assert.Equal(t, []string{
		"sqlite:closed->open",
		"sqlite:open->half-open",
		"sqlite:half-open->closed",
	}, transitions)
}

func TestCall(t *testing.T) {
	b := New("sqlite", Settings{})

	n, err := Call(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = Call(b, func() (string, error) { return "", errDisk })
	assert.ErrorIs(t, err, errDisk)
}

func TestPanicCountsAsFailure(t *testing.T) {
	b := New("sqlite", Settings{})

	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, uint32(1), b.Counts().Failures)
}
