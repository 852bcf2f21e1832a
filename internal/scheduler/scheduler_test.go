package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		value   string
		hour    int
		minute  int
		wantErr bool
	}{
		{value: "18:00", hour: 18, minute: 0},
		{value: "09:05", hour: 9, minute: 5},
		{value: "0:30", hour: 0, minute: 30},
		{value: " 23:59 ", hour: 23, minute: 59},
		{value: "24:00", wantErr: true},
		{value: "12:60", wantErr: true},
		{value: "12:5", wantErr: true},
		{value: "noon", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			hour, minute, err := ParseClock(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.minute, minute)
		})
	}
}

func TestScheduler_FiresOncePerDay(t *testing.T) {
	loc := time.FixedZone("UZT", 5*60*60)
	clock := &fakeClock{}
	s := NewScheduler(Config{Interval: 30 * time.Second, Location: loc}, zap.NewNop())
	s.SetClock(clock.Now)

	digest := &countingJob{name: "debtor-digest"}
	require.NoError(t, s.Register("18:00", digest))

	ctx := context.Background()
	poll := func(from time.Time, steps int) {
		for i := 0; i < steps; i++ {
			clock.Set(from.Add(time.Duration(i) * 30 * time.Second))
			s.Tick(ctx)
		}
	}

	day1 := time.Date(2026, 4, 1, 17, 58, 0, 0, loc)
	poll(day1, 10)
	assert.Equal(t, int32(1), digest.runs.Load())

	poll(day1.Add(2*time.Hour), 10)
	assert.Equal(t, int32(1), digest.runs.Load())

	poll(day1.AddDate(0, 0, 1), 10)
	assert.Equal(t, int32(2), digest.runs.Load())
}

func TestScheduler_UsesConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UZT", 5*60*60)
	clock := &fakeClock{}
	s := NewScheduler(Config{Location: loc}, zap.NewNop())
	s.SetClock(clock.Now)

	job := &countingJob{name: "backup"}
	require.NoError(t, s.Register("23:00", job))

	clock.Set(time.Date(2026, 4, 1, 23, 0, 0, 0, time.UTC))
	assert.Empty(t, s.Tick(context.Background()))

	clock.Set(time.Date(2026, 4, 1, 18, 0, 10, 0, time.UTC))
	assert.Equal(t, []string{"backup"}, s.Tick(context.Background()))
}

func TestScheduler_FailingJobsAreIsolated(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	s := NewScheduler(Config{}, zap.NewNop())
	s.SetClock(clock.Now)

	panicking := &countingJob{name: "subscription", panic: true}
	failing := &countingJob{name: "backup", err: errors.New("disk full")}
	healthy := &countingJob{name: "debtor-digest"}
	require.NoError(t, s.Register("09:00", panicking))
	require.NoError(t, s.Register("09:00", failing))
	require.NoError(t, s.Register("09:00", healthy))

	fired := s.Tick(context.Background())
	assert.Equal(t, []string{"subscription", "backup", "debtor-digest"}, fired)
	assert.Equal(t, int32(1), healthy.runs.Load())

	assert.Empty(t, s.Tick(context.Background()))
}

func TestScheduler_StartStop(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)}
	s := NewScheduler(Config{Interval: 5 * time.Millisecond}, zap.NewNop())
	s.SetClock(clock.Now)

	job := &countingJob{name: "debtor-digest"}
	require.NoError(t, s.Register("20:00", job))

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))
}

func TestScheduler_RegisterRejectsBadTime(t *testing.T) {
	s := NewScheduler(Config{}, zap.NewNop())
	assert.ErrorIs(t, s.Register("25:00", &countingJob{name: "x"}), ErrInvalidClock)
}
