package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		ResetTimeout:        60 * time.Second,
		HalfOpenMaxRequests: 2,
	}
}

// fakeClock lets tests advance the breaker's notion of time.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := New("web-search", testConfig())
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(t)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.CanAdmit())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.CanAdmit())
}

func TestBreaker_SuccessInterruptsFailureStreak(t *testing.T) {
	b, clock := newTestBreaker(t)

	b.RecordFailure()
	b.RecordFailure()
	// Success after reset timeout clears the failure count.
	clock.advance(61 * time.Second)
	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_SuccessBeforeResetTimeoutKeepsCount(t *testing.T) {
	b, clock := newTestBreaker(t)

	b.RecordFailure()
	b.RecordFailure()
	clock.advance(10 * time.Second)
	b.RecordSuccess() // too early to reset
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_LazyHalfOpenTransition(t *testing.T) {
	b, clock := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())
	assert.False(t, b.CanAdmit())

	clock.advance(31 * time.Second)
	// The transition happens on the admission check, not via a timer.
	assert.True(t, b.CanAdmit())
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_HalfOpenAdmissionCap(t *testing.T) {
	b, clock := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.advance(31 * time.Second)

	assert.True(t, b.CanAdmit())
	assert.True(t, b.CanAdmit())
	// Third trial exceeds half_open_max_requests.
	assert.False(t, b.CanAdmit())
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b, clock := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.advance(31 * time.Second)
	require.True(t, b.CanAdmit())
	b.RecordSuccess()
	require.Equal(t, StateHalfOpen, b.State())
	require.True(t, b.CanAdmit())
	b.RecordSuccess()

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.CanAdmit())
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	b, clock := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.advance(31 * time.Second)
	require.True(t, b.CanAdmit())
	b.RecordSuccess()
	b.RecordFailure()

	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.CanAdmit())
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	b, clock := newTestBreaker(t)

	var transitions []string
	b.OnStateChange(func(name string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.advance(31 * time.Second)
	require.True(t, b.CanAdmit())
	b.RecordSuccess()
	require.True(t, b.CanAdmit())
	b.RecordSuccess()

	assert.Equal(t, []string{
		"closed->open",
		"open->half_open",
		"half_open->closed",
	}, transitions)
}

func TestBreaker_DeterministicSequence(t *testing.T) {
	// Same config, same clock, same sequence → same states.
	run := func() []State {
		b, clock := newTestBreaker(t)
		var states []State
		record := func(success bool) {
			if success {
				b.RecordSuccess()
			} else {
				b.RecordFailure()
			}
			states = append(states, b.State())
		}
		record(false)
		record(false)
		record(false)
		clock.advance(31 * time.Second)
		b.CanAdmit()
		record(true)
		record(true)
		return states
	}
	assert.Equal(t, run(), run())
}

func TestRegistry_IdempotentLookup(t *testing.T) {
	r := NewRegistry(map[string]Config{
		"web-search": testConfig(),
	})

	a := r.Get("web-search")
	b := r.Get("web-search")
	assert.Same(t, a, b)

	// Unknown services get the default configuration.
	unknown := r.Get("mystery-service")
	assert.Equal(t, StateClosed, unknown.State())
	for i := 0; i < DefaultConfig().FailureThreshold; i++ {
		unknown.RecordFailure()
	}
	assert.Equal(t, StateOpen, unknown.State())
}

func TestRegistry_States(t *testing.T) {
	r := NewRegistry(nil)
	r.Get("alpha")
	beta := r.Get("beta")
	for i := 0; i < DefaultConfig().FailureThreshold; i++ {
		beta.RecordFailure()
	}

	states := r.States()
	assert.Equal(t, "closed", states["alpha"])
	assert.Equal(t, "open", states["beta"])
}
