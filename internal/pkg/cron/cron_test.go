package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndList(t *testing.T) {
	s := New()
	s.Register(Job{
		Name:        "cleanup_sessions",
		Description: "remove expired session rows",
		Interval:    time.Hour,
		Fn:          func(ctx context.Context) error { return nil },
	})

	items := s.List()
	require.Len(t, items, 1)
	assert.Equal(t, "cleanup_sessions", items[0].Name)
	assert.Equal(t, StatusIdle, items[0].Status)
	assert.Nil(t, items[0].LastRunAt)
	require.NotNil(t, items[0].NextDate)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *items[0].NextDate, time.Second)
}

func TestRunTriggersJobAndRecordsOutcome(t *testing.T) {
	var ran atomic.Int32
	s := New()
	s.Register(Job{
		Name:     "prune",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		},
	})

	require.NoError(t, s.Run(context.Background(), "prune"))

	require.Eventually(t, func() bool {
		result, err := s.GetTask("prune")
		return err == nil && result.Status == StatusFulfill
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), ran.Load())

	items := s.List()
	require.Len(t, items, 1)
	assert.NotNil(t, items[0].LastRunAt)
}

func TestFailedJobReportsRejectWithMessage(t *testing.T) {
	s := New()
	s.Register(Job{
		Name:     "prune",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			return errors.New("table locked")
		},
	})

	require.NoError(t, s.Run(context.Background(), "prune"))

	require.Eventually(t, func() bool {
		result, err := s.GetTask("prune")
		return err == nil && result.Status == StatusReject && result.Message == "table locked"
	}, time.Second, 5*time.Millisecond)
}

func TestUnknownJobErrors(t *testing.T) {
	s := New()
	assert.Error(t, s.Run(context.Background(), "nope"))
	_, err := s.GetTask("nope")
	assert.Error(t, err)
}

func TestScheduledRunFiresOnInterval(t *testing.T) {
	var ran atomic.Int32
	s := New()
	s.Register(Job{
		Name:     "fast",
		Interval: 10 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return ran.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}
