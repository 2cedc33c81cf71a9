package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 5 * time.Minute

var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrDuplicateJob = errors.New("job already registered")
)

// Task performs one run and reports how many rows it changed.
type Task func(ctx context.Context) (int64, error)

type Job struct {
	Name     string
	Schedule string
	Run      Task
}

type Observer interface {
	JobRun(job string, duration time.Duration, rows int64, err error)
}

type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]Job
	order    []string
	timeout  time.Duration
	logger   *logging.Service
	observer Observer

	mu      sync.Mutex
	running bool
}

func NewScheduler(logger *logging.Service) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:    make(map[string]Job),
		timeout: defaultTimeout,
		logger:  logger,
	}
}

func (s *Scheduler) SetObserver(observer Observer) {
	s.observer = observer
}

func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job requires a name and a task")
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}

	if _, err := s.cron.AddFunc(job.Schedule, func() {
		_ = s.execute(context.Background(), job)
	}); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}

	s.jobs[job.Name] = job
	s.order = append(s.order, job.Name)
	s.logger.Info("job registered", zap.String("job", job.Name), zap.String("schedule", job.Schedule))
	return nil
}

func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.order...)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	rows, err := job.Run(ctx)
	duration := time.Since(start)

	if s.observer != nil {
		s.observer.JobRun(job.Name, duration, rows, err)
	}

	if err != nil {
		s.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", duration),
			zap.Error(err))
		return err
	}

	s.logger.Debug("job completed",
		zap.String("job", job.Name),
		zap.Int64("rows", rows),
		zap.Duration("duration", duration))
	return nil
}

func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

// RunAll runs every registered job once, concurrently, and returns the first error.
func (s *Scheduler) RunAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		job := s.jobs[name]
		g.Go(func() error {
			return s.execute(ctx, job)
		})
	}
	return g.Wait()
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("job scheduler started", zap.Strings("jobs", s.order))
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	logger *logging.Service
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
