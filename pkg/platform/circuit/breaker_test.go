package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(clock *fakeClock) *Breaker {
	return New("redis",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(10*time.Second),
		WithClock(clock.now),
	)
}

func TestBreaker(t *testing.T) {
	t.Run("opens after consecutive failures", func(t *testing.T) {
		b := newTestBreaker(&fakeClock{t: time.Unix(0, 0)})

		assert.False(t, b.RecordFailure().Opened)
		assert.False(t, b.RecordFailure().Opened)
		assert.True(t, b.RecordFailure().Opened)
		assert.Equal(t, StateOpen, b.State())
		assert.False(t, b.Allow())
	})

	t.Run("success resets the failure streak", func(t *testing.T) {
		b := newTestBreaker(&fakeClock{t: time.Unix(0, 0)})

		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("probes after cooldown and closes on enough successes", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(0, 0)}
		b := newTestBreaker(clock)
		for range 3 {
			b.RecordFailure()
		}

		clock.advance(9 * time.Second)
		assert.False(t, b.Allow())

		clock.advance(time.Second)
		assert.True(t, b.Allow())
		assert.Equal(t, StateHalfOpen, b.State())

		assert.False(t, b.RecordSuccess().Closed)
		assert.True(t, b.RecordSuccess().Closed)
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("probe failure reopens with a fresh cooldown", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(0, 0)}
		b := newTestBreaker(clock)
		for range 3 {
			b.RecordFailure()
		}
		clock.advance(10 * time.Second)
		assert.True(t, b.Allow())

		assert.True(t, b.RecordFailure().Opened)
		assert.False(t, b.Allow())
		clock.advance(10 * time.Second)
		assert.True(t, b.Allow())
	})

	t.Run("reset closes the circuit", func(t *testing.T) {
		b := newTestBreaker(&fakeClock{t: time.Unix(0, 0)})
		for range 3 {
			b.RecordFailure()
		}
		b.Reset()
		assert.True(t, b.Allow())
		assert.Equal(t, "closed", b.State().String())
	})
}
