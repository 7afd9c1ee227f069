// Package scheduler runs named background jobs on fixed intervals. Every run
// of a job holds that job's lease, so a tick that lands while the previous run
// is still going is skipped instead of stacking up.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrUnknownJob = errors.New("scheduler: unknown job")
	ErrJobBusy    = errors.New("scheduler: job already running")
)

type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context, now time.Time) error
}

type Scheduler struct {
	clock  Clock
	locker Locker
	jobs   map[string]Job
	order  []string

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func New(clock Clock, locker Locker, jobs ...Job) *Scheduler {
	s := &Scheduler{
		clock:  clock,
		locker: locker,
		jobs:   make(map[string]Job, len(jobs)),
	}
	for _, j := range jobs {
		s.jobs[j.Name] = j
		s.order = append(s.order, j.Name)
	}
	return s
}

// Jobs lists the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.order...)
}

// Start launches one ticker loop per job. It returns immediately; Stop ends
// the loops and waits for in-flight runs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, name := range s.order {
		job := s.jobs[name]
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	slog.InfoContext(ctx, "scheduler started", "jobs", s.order)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("scheduler stopped")
}

// RunJob runs the named job once, outside the ticker loop. It still takes the
// job's lease and returns ErrJobBusy when another run holds it.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	t := s.clock.NewTicker(job.Every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if err := s.run(ctx, job); err != nil && !errors.Is(err, ErrJobBusy) {
					slog.ErrorContext(ctx, "scheduled job failed", "job", job.Name, "error", err)
				}
			}()
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "job "+job.Name)
	defer span.End()
	span.SetAttributes(attribute.String("job.name", job.Name))

	release, ok, err := s.locker.TryLock(ctx, job.Name, job.Every)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if !ok {
		slog.InfoContext(ctx, "job skipped, previous run still holds the lease", "job", job.Name)
		return fmt.Errorf("%w: %s", ErrJobBusy, job.Name)
	}
	defer release()

	started := s.clock.Now()
	if err := job.Run(ctx, started); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("scheduler: %s: %w", job.Name, err)
	}
	slog.InfoContext(ctx, "job finished", "job", job.Name, "took_ms", s.clock.Now().Sub(started).Milliseconds())
	return nil
}
