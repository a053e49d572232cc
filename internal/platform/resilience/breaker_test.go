package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, openTimeout time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker(BreakerConfig{Enabled: true, FailureThreshold: threshold, OpenTimeout: openTimeout})
	clock := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}

	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	require.NoError(t, b.Allow())
	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	*clock = clock.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	require.NoError(t, b.Allow())
	b.RecordFailure()
	*clock = clock.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	require.NoError(t, b.Allow())
	b.RecordFailure()
	b.RecordSuccess()
	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, BreakerClosed, b.State())
}
