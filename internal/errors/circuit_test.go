package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestCircuitBreaker_OpensAfterWindowedFailures(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("embedding",
		WithMaxFailures(3),
		WithWindow(time.Minute),
		WithClock(clk.now),
	)

	assert.True(t, cb.Allow())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow(), "below threshold should stay closed")

	cb.RecordFailure()
	assert.False(t, cb.Allow())
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_OldFailuresFallOutOfWindow(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("embedding",
		WithMaxFailures(3),
		WithWindow(time.Minute),
		WithClock(clk.now),
	)

	cb.RecordFailure()
	cb.RecordFailure()

	// Failures age out before the third arrives.
	clk.advance(2 * time.Minute)
	cb.RecordFailure()

	assert.True(t, cb.Allow())
	assert.Equal(t, 1, cb.Failures())
}

func TestCircuitBreaker_StaysOpenUntilManualReset(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("embedding",
		WithMaxFailures(1),
		WithWindow(time.Minute),
		WithClock(clk.now),
	)

	cb.RecordFailure()
	assert.False(t, cb.Allow())

	// Time alone never recovers an open breaker.
	clk.advance(time.Hour)
	assert.False(t, cb.Allow())

	// Neither does a success.
	cb.RecordSuccess()
	assert.False(t, cb.Allow())

	cb.Reset()
	assert.True(t, cb.Allow())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SuccessClearsClosedFailures(t *testing.T) {
	cb := NewCircuitBreaker("embedding", WithMaxFailures(2))

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_StateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
