package chrono

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandardSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := NewStandardImpl().Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestStandardSleepWaits(t *testing.T) {
	start := time.Now()
	err := NewStandardImpl().Sleep(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFakeRecordsSleeps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := NewFake(start)

	require.NoError(t, fake.Sleep(context.Background(), time.Second))
	require.NoError(t, fake.Sleep(context.Background(), 300*time.Millisecond))

	require.Equal(t, []time.Duration{time.Second, 300 * time.Millisecond}, fake.Sleeps())
	require.Equal(t, start.Add(1300*time.Millisecond), fake.Now())
}
