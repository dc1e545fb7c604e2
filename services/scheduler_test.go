package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

type countingTrigger struct {
	calls  atomic.Int32
	accept bool
}

func (c *countingTrigger) StartRefresh() (bool, models.RefreshStatus) {
	c.calls.Add(1)
	return c.accept, models.RefreshStatus{IsRunning: true, RunID: "run-x"}
}

func TestNextRun(t *testing.T) {
	s, err := NewDailyScheduler("09:00", false, &countingTrigger{}, utils.Discard())
	require.NoError(t, err)

	loc := time.FixedZone("CST", 8*3600)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before slot", time.Date(2026, 3, 1, 8, 59, 0, 0, loc), time.Date(2026, 3, 1, 9, 0, 0, 0, loc)},
		{"exactly at slot", time.Date(2026, 3, 1, 9, 0, 0, 0, loc), time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
		{"after slot", time.Date(2026, 3, 1, 17, 0, 0, 0, loc), time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
		{"month end", time.Date(2026, 3, 31, 23, 0, 0, 0, loc), time.Date(2026, 4, 1, 9, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(s.NextRun(tt.now)), "NextRun(%v) = %v, want %v", tt.now, s.NextRun(tt.now), tt.want)
		})
	}
}

func TestNewDailySchedulerRejectsBadTime(t *testing.T) {
	_, err := NewDailyScheduler("9 o'clock", true, &countingTrigger{}, utils.Discard())
	assert.Error(t, err)
}

func TestRunTriggersOnStartAndStops(t *testing.T) {
	trigger := &countingTrigger{accept: true}
	s, err := NewDailyScheduler("09:00", true, trigger, utils.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return trigger.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.Equal(t, int32(1), trigger.calls.Load())
}

func TestRunWithoutStartupTrigger(t *testing.T) {
	trigger := &countingTrigger{}
	s, err := NewDailyScheduler("09:00", false, trigger, utils.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)
	assert.Zero(t, trigger.calls.Load())
}
