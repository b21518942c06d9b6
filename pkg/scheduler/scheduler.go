package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timothyfroehlich/DisPinMap-sub000/metrics"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/health"
	"github.com/timothyfroehlich/DisPinMap-sub000/plugins/common"
	"go.uber.org/zap"
)

// Job is executed once per tick
type Job interface {
	Name() string
	Run(run *common.Run) error
}

// Locker guards a tick against concurrent execution by other worker instances
type Locker interface {
	LockWithContext(ctx context.Context) (bool, error)
	Unlock() error
}

type Scheduler struct {
	logger   *zap.Logger
	interval time.Duration
	ready    <-chan struct{}
	jobs     []Job
	locker   func() Locker
	now      func() time.Time

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	started  bool

	mu    sync.Mutex
	stats health.Snapshot
}

// NewScheduler creates a scheduler that runs jobs every interval once ready is closed
func NewScheduler(
	logger *zap.Logger,
	interval time.Duration,
	ready <-chan struct{},
	jobs ...Job,
) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Scheduler{
		logger:   logger,
		interval: interval,
		ready:    ready,
		jobs:     jobs,
		now:      time.Now,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		stats: health.Snapshot{
			Interval: interval.String(),
		},
	}
}

// AddJob registers another job, it must be called before Start
func (s *Scheduler) AddJob(job Job) {
	s.jobs = append(s.jobs, job)
}

// WithLocker sets a factory for the lock obtained around every tick
func (s *Scheduler) WithLocker(locker func() Locker) {
	s.locker = locker
}

// Start blocks until ctx is done or Stop is called. It waits for the ready signal,
// runs one eager pass and then ticks every interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	defer close(s.done)

	if s.ready != nil {
		s.logger.Info("waiting for readiness")

		select {
		case <-s.ready:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.quit:
			return nil
		}
	}

	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.setNextTick(s.now().Add(s.interval))

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped (context cancelled)")
			return ctx.Err()
		case <-s.quit:
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Stop ends the loop after the current tick completed
func (s *Scheduler) Stop() {
	s.quitOnce.Do(func() {
		close(s.quit)
	})

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// Tick runs every job once. It never panics and never returns an error,
// failures are logged and counted.
func (s *Scheduler) Tick(ctx context.Context) {
	started := s.now()

	if s.locker != nil {
		lock := s.locker()
		locked, err := lock.LockWithContext(ctx)
		if err != nil {
			s.logger.Error("error acquiring run lock", zap.Error(err))
			s.record(started, 1)
			return
		}
		if !locked {
			s.logger.Info("skipped tick, another run is already in progress")
			return
		}
		defer func() {
			err := lock.Unlock()
			if err != nil {
				s.logger.Warn("error releasing run lock", zap.Error(err))
			}
		}()
	}

	var errorCount int64
	for _, job := range s.jobs {
		errorCount += s.runJob(ctx, job)
	}

	s.record(started, errorCount)

	s.logger.Debug("tick completed",
		zap.Duration("took", s.now().Sub(started)),
		zap.Int64("errors", errorCount),
	)
}

func (s *Scheduler) runJob(ctx context.Context, job Job) (errorCount int64) {
	run := common.NewRun(job.Name())

	logger := s.logger.With(
		zap.String("job", job.Name()),
		zap.String("run_id", run.ID.String()),
		zap.String("launch", run.Launch.String()),
	)

	run.WithContext(ctx)
	run.WithLogger(logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("run execution panicked",
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"),
			)
			errorCount = run.Errors() + 1
		}
	}()

	err := job.Run(run)
	if err != nil {
		logger.Error("run execution failed",
			zap.Error(err),
		)
		return run.Errors() + 1
	}

	return run.Errors()
}

func (s *Scheduler) record(tickAt time.Time, errorCount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Iterations++
	s.stats.LastTickAt = tickAt
	s.stats.TotalErrors += errorCount
	if errorCount > 0 {
		s.stats.ConsecutiveErrors++
	} else {
		s.stats.ConsecutiveErrors = 0
		s.stats.LastSuccessAt = tickAt
	}

	metrics.Ticks.Inc()
	metrics.TickErrors.Add(float64(errorCount))
}

func (s *Scheduler) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Running = running
	if !running {
		s.stats.NextTickAt = time.Time{}
	}
}

func (s *Scheduler) setNextTick(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.NextTickAt = at
}

// Snapshot returns a copy of the current health counters
func (s *Scheduler) Snapshot() health.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}
