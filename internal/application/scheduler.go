package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler errors.
var (
	// ErrJobNotFound indicates a trigger for a job name never registered.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning indicates a trigger while the job is mid-run.
	ErrJobRunning = errors.New("job already running")
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context, now time.Time) error

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name     string
	Interval time.Duration
	Running  bool
	LastRun  time.Time // zero if never run
	LastErr  string    // empty if the last run succeeded
	Runs     int64
	Failures int64
	Skips    int64 // ticks skipped because the previous run was still going
}

type job struct {
	name         string
	interval     time.Duration
	initialDelay time.Duration
	fn           JobFunc

	running atomic.Bool

	mu       sync.Mutex
	lastRun  time.Time
	lastErr  string
	runs     int64
	failures int64
	skips    int64
}

// Scheduler runs registered jobs on fixed intervals, each in its own
// goroutine. A job that is still running when its next tick arrives is
// skipped for that tick, never run concurrently with itself. A panicking
// job is contained and counted as a failure.
type Scheduler struct {
	mu     sync.Mutex
	jobs   []*job
	byName map[string]*job
}

// NewScheduler creates an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{byName: make(map[string]*job)}
}

// Register adds a job. initialDelay staggers the first run; zero means the
// job runs as soon as the scheduler starts. Registration after Start is
// not supported.
func (s *Scheduler) Register(name string, interval, initialDelay time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("job %s: already registered", name)
	}

	j := &job{name: name, interval: interval, initialDelay: initialDelay, fn: fn}
	s.jobs = append(s.jobs, j)
	s.byName[name] = j
	return nil
}

// Start runs all registered jobs until the context is canceled, then waits
// for in-flight runs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]*job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			s.runLoop(ctx, j)
		}(j)
	}

	<-ctx.Done()
	wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	if j.initialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(j.initialDelay):
		}
	}

	s.runOnce(ctx, j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

// runOnce executes the job if it is not already running. Returns false
// when the run was skipped because of overlap.
func (s *Scheduler) runOnce(ctx context.Context, j *job) bool {
	if !j.running.CompareAndSwap(false, true) {
		slog.Warn("job still running, skipping tick", "job", j.name)
		j.mu.Lock()
		j.skips++
		j.mu.Unlock()
		return false
	}
	defer j.running.Store(false)

	now := time.Now().UTC()
	start := time.Now()

	err := safeRun(ctx, j, now)

	j.mu.Lock()
	j.lastRun = now
	j.runs++
	if err != nil {
		j.failures++
		j.lastErr = err.Error()
	} else {
		j.lastErr = ""
	}
	j.mu.Unlock()

	if err != nil {
		slog.Error("job failed", "job", j.name, "error", err, "duration", time.Since(start).Round(time.Millisecond))
	} else {
		slog.Debug("job finished", "job", j.name, "duration", time.Since(start).Round(time.Millisecond))
	}

	return true
}

// safeRun contains panics so one bad job cannot take the process down.
func safeRun(ctx context.Context, j *job, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.fn(ctx, now)
}

// Trigger runs a job immediately and synchronously, outside its schedule.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if !s.runOnce(ctx, j) {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.lastErr != "" {
		return errors.New(j.lastErr)
	}
	return nil
}

// Status reports every registered job in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		out = append(out, JobStatus{
			Name:     j.name,
			Interval: j.interval,
			Running:  j.running.Load(),
			LastRun:  j.lastRun,
			LastErr:  j.lastErr,
			Runs:     j.runs,
			Failures: j.failures,
			Skips:    j.skips,
		})
		j.mu.Unlock()
	}
	return out
}
