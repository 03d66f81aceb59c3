package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

type fakeSweep struct {
	mu     sync.Mutex
	calls  int
	result *lifecycle.SweepResult
	err    error
	seen   time.Time
}

func (f *fakeSweep) Execute(ctx context.Context, now time.Time) (*lifecycle.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = now
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSweep) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweeper_RunOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sweep := &fakeSweep{result: &lifecycle.SweepResult{
		Approved: 2,
		Failed:   []lifecycle.SweepFailure{{CancellationID: uuid.New(), Err: errors.New("x"), Committed: true}},
	}}
	locker := NewLocalLocker()
	s := NewSweeper(sweep, locker, time.Minute, time.Minute)
	s.now = func() time.Time { return now }

	result, ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, result.Approved)
	assert.Len(t, result.Failed, 1)
	assert.Equal(t, now, sweep.seen)

	// Блокировка снята после прохода
	release, ok, err := locker.TryLock(context.Background(), sweepLockKey, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, release(context.Background()))
}

func TestSweeper_LogsEachFailureWithComponent(t *testing.T) {
	previous := logger.Log
	quiet, hook := logtest.NewNullLogger()
	logger.Log = quiet
	defer func() { logger.Log = previous }()

	failedID := uuid.New()
	sweep := &fakeSweep{result: &lifecycle.SweepResult{
		Failed: []lifecycle.SweepFailure{{CancellationID: failedID, Err: errors.New("refund down"), Committed: true}},
	}}
	s := NewSweeper(sweep, NewLocalLocker(), time.Minute, time.Minute)

	_, ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)

	var failureEntry *logrus.Entry
	for _, e := range hook.AllEntries() {
		assert.Equal(t, "sweeper", e.Data["component"])
		if e.Data["cancellation_id"] == failedID {
			failureEntry = e
		}
	}
	require.NotNil(t, failureEntry)
	assert.Equal(t, logrus.WarnLevel, failureEntry.Level)
	assert.Equal(t, true, failureEntry.Data["committed"])
}

func TestSweeper_SkipsWhenLocked(t *testing.T) {
	sweep := &fakeSweep{result: &lifecycle.SweepResult{}}
	locker := NewLocalLocker()
	s := NewSweeper(sweep, locker, time.Minute, time.Minute)

	release, ok, err := locker.TryLock(context.Background(), sweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release(context.Background())

	result, ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Nil(t, result)
	assert.Equal(t, 0, sweep.callCount())
}

func TestSweeper_PropagatesError(t *testing.T) {
	sweep := &fakeSweep{err: errors.New("db down")}
	s := NewSweeper(sweep, NewLocalLocker(), time.Minute, time.Minute)

	_, ran, err := s.RunOnce(context.Background())
	assert.True(t, ran)
	assert.EqualError(t, err, "db down")
}

func TestSweeper_RunSweepsImmediatelyAndStops(t *testing.T) {
	sweep := &fakeSweep{result: &lifecycle.SweepResult{}}
	s := NewSweeper(sweep, NewLocalLocker(), time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return sweep.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run не остановился")
	}
}

func TestRedisLocker_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	_, ok, err := NewRedisLocker(client).TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestRedisLocker_EmptyKey(t *testing.T) {
	_, _, err := NewRedisLocker(nil).TryLock(context.Background(), "", time.Second)
	assert.Error(t, err)
}
