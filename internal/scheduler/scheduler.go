package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidClock is returned for trigger times that are not HH:MM
	ErrInvalidClock = errors.New("trigger time must be HH:MM")

	// ErrAlreadyRunning is returned when Start is called twice
	ErrAlreadyRunning = errors.New("scheduler is already running")
)

// Job is a daily side effect run by the scheduler.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Config holds the polling loop settings.
type Config struct {
	// Interval is how often the loop evaluates triggers. It must be shorter than a minute.
	Interval time.Duration
	// Location is the zone trigger times are expressed in.
	Location *time.Location
	// JobTimeout bounds a single job run. Zero means no limit.
	JobTimeout time.Duration
}

type trigger struct {
	hour, minute int
	job          Job
	// lastFired is the local calendar date the job last ran on.
	lastFired string
}

// Scheduler fires each registered job once per calendar day at its wall-clock time.
type Scheduler struct {
	config Config
	now    func() time.Time
	logger *zap.Logger

	mu        sync.Mutex
	triggers  []*trigger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

func NewScheduler(config Config, logger *zap.Logger) *Scheduler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	return &Scheduler{
		config: config,
		now:    time.Now,
		logger: logger.Named("scheduler"),
	}
}

// SetClock replaces the clock used to evaluate triggers.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// ParseClock splits "HH:MM" into hour and minute.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return hour, minute, nil
}

// Register adds job to run daily at the given "HH:MM" time.
func (s *Scheduler) Register(at string, job Job) error {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.triggers = append(s.triggers, &trigger{hour: hour, minute: minute, job: job})
	s.mu.Unlock()

	s.logger.Info("Job registered", zap.String("job", job.Name()), zap.String("at", at))
	return nil
}

// due returns the triggers matching now and marks them fired for today.
func (s *Scheduler) due(now time.Time) []*trigger {
	local := now.In(s.config.Location)
	today := local.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*trigger
	for _, t := range s.triggers {
		if local.Hour() != t.hour || local.Minute() != t.minute || t.lastFired == today {
			continue
		}
		t.lastFired = today
		due = append(due, t)
	}
	return due
}

// Tick evaluates all triggers once and runs the due jobs in registration order.
// It returns the names of the jobs it ran.
func (s *Scheduler) Tick(ctx context.Context) []string {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()

	var fired []string
	for _, t := range s.due(now) {
		s.runJob(ctx, t.job)
		fired = append(fired, t.job.Name())
	}
	return fired
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panicked", zap.String("job", job.Name()), zap.Any("panic", r))
		}
	}()

	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("Job started", zap.String("job", job.Name()))
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Job failed", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Info("Job finished", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
}

// Start launches the polling loop. Jobs run one at a time on the loop goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.String("location", s.config.Location.String()))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Stop cancels the loop and waits for a running job to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}
