package chrono

import (
	"context"
	"ldmonitor/internal/components/telemetry"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeTime(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, CST())
	clock := NewFakeTime(start)

	clock.Advance(time.Minute)
	require.Equal(t, start.Add(time.Minute), clock.Now())

	require.NoError(t, clock.Sleep(context.Background(), 2*time.Second))
	require.Equal(t, start.Add(time.Minute+2*time.Second), clock.Now())
	require.Equal(t, []time.Duration{2 * time.Second}, clock.Slept())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, clock.Sleep(ctx, time.Hour), context.Canceled)
	require.Len(t, clock.Slept(), 1)
}

func TestStandardTimeSleepCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := NewStandardTime().Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSchedulerEvery(t *testing.T) {
	scheduler := NewScheduler(telemetry.NewRecorder())
	var runs atomic.Int32
	scheduler.Every(time.Second, func() { runs.Add(1) })

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	scheduler.Stop()
}

func TestSchedulerBadSpec(t *testing.T) {
	scheduler := NewScheduler(telemetry.NewRecorder())
	defer scheduler.Stop()
	require.Error(t, scheduler.Add("not a spec", func() {}))
}
