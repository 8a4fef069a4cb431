package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDelayExponential(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, p.Delay(0, 0))
	assert.Equal(t, 2*time.Second, p.Delay(1, 0))
	assert.Equal(t, 4*time.Second, p.Delay(2, 0))
	assert.Equal(t, 5*time.Second, p.Delay(3, 0), "capped at MaxDelay")
}

func TestPolicyDelayHonorsHint(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	assert.Equal(t, 7*time.Second, p.Delay(0, 7*time.Second))
	assert.Equal(t, 10*time.Second, p.Delay(0, time.Minute))
}

func TestPolicyRandomizationStaysInWindow(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, Randomization: 0.25}
	for i := 0; i < 50; i++ {
		first := p.Delay(0, 0)
		require.GreaterOrEqual(t, first, 750*time.Millisecond-time.Microsecond)
		require.LessOrEqual(t, first, 1250*time.Millisecond+time.Microsecond)

		third := p.Delay(2, 0)
		require.GreaterOrEqual(t, third, 3*time.Second-time.Microsecond)
		require.LessOrEqual(t, third, 5*time.Second+time.Microsecond)
	}
}

func TestPolicyRandomizedStepNeverExceedsMaxDelay(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 2 * time.Second, Randomization: 0.5}
	for i := 0; i < 50; i++ {
		require.LessOrEqual(t, p.Delay(5, 0), 2*time.Second)
	}
}

func TestPolicyLargeAttemptIsCapped(t *testing.T) {
	p := Policy{BaseDelay: time.Millisecond, MaxDelay: time.Second}
	assert.Equal(t, time.Second, p.Delay(1_000_000, 0))
	assert.Equal(t, time.Millisecond, p.Delay(-3, 0))
}

func TestPolicyHasNext(t *testing.T) {
	p := Default()
	assert.True(t, p.HasNext(0))
	assert.True(t, p.HasNext(1))
	assert.False(t, p.HasNext(2))

	assert.False(t, Policy{MaxAttempts: 1}.HasNext(0))
}

func TestNormalizeDefaults(t *testing.T) {
	p := Policy{}.Normalize()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, p.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, p.MaxDelay)
	assert.Zero(t, Policy{Randomization: 1.5}.Normalize().Randomization)
}

func TestRealSleeperCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RealSleeper.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
