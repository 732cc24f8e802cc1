// Package scheduler drives an open set of recurring tasks, one goroutine per
// task, each on its own daily cadence.
//
// Every task loop is strictly sequential: compute the next delay, sleep,
// run, repeat. A task is therefore never re-entered while a previous run is
// still executing, while different tasks overlap freely. Errors and panics
// from one run are logged and recorded, and never reach a sibling loop or
// the process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"amd/pkg/logx"
)

// Config controls run execution. The zero value is usable.
type Config struct {
	// DefaultTimeout bounds one Run call so a hung remote call cannot delay
	// the task's next scheduled run indefinitely. Zero disables the bound.
	DefaultTimeout time.Duration
	// HistorySize bounds the in-memory run history (default 100).
	HistorySize int
}

var ErrStarted = errors.New("scheduler already started")

type Service struct {
	cfg   Config
	log   logx.Logger
	store Store

	mu      sync.Mutex
	tasks   []Task
	started bool

	wg sync.WaitGroup

	hmu     sync.Mutex
	history []RunRecord
}

func New(cfg Config, log logx.Logger) *Service {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return &Service{cfg: cfg, log: log.With(logx.String("comp", "scheduler"))}
}

// SetStore attaches an optional persistent run-history store. Valid only
// before Start.
func (s *Service) SetStore(store Store) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

// Register adds tasks to the managed set. Valid only before Start.
func (s *Service) Register(tasks ...Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.tasks = append(s.tasks, tasks...)
	return nil
}

// Start spawns one long-lived loop goroutine per registered task and
// returns. Loops run until ctx is canceled; Wait joins them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true

	if len(s.tasks) == 0 {
		s.log.Warn("no tasks registered")
		return nil
	}

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	s.log.Info("scheduler started", logx.Int("tasks", len(s.tasks)))
	return nil
}

// Wait blocks until all task loops have exited (after ctx cancellation).
func (s *Service) Wait() { s.wg.Wait() }

// History returns a copy of the in-memory run history, oldest first.
func (s *Service) History() []RunRecord {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]RunRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) loop(ctx context.Context, t Task) {
	defer s.wg.Done()
	log := s.log.With(logx.String("task", t.Name()))

	for {
		delay := nextDelay(t, log)
		log.Debug("waiting for next run", logx.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug("task loop stopped")
			return
		case <-timer.C:
		}

		s.runOnce(ctx, t, log)
	}
}

// nextDelay evaluates RunIn behind a recover so a broken delay function
// degrades to a retry instead of killing the loop.
func nextDelay(t Task, log logx.Logger) (d time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task delay computation panicked", logx.Any("panic", r))
			d = time.Minute
		}
	}()
	d = t.RunIn()
	if d <= 0 {
		// A Task contract violation; don't spin.
		log.Warn("task returned non-positive delay", logx.Duration("delay", d))
		d = time.Minute
	}
	return d
}

func (s *Service) runOnce(ctx context.Context, t Task, log logx.Logger) {
	start := time.Now()

	runCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.DefaultTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.DefaultTimeout)
	}
	err := execute(runCtx, t)
	if cancel != nil {
		cancel()
	}

	rec := RunRecord{
		Task:      t.Name(),
		StartedAt: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		rec.Error = err.Error()
		log.Error("task run failed", logx.Err(err), logx.Duration("took", rec.Duration))
	} else {
		log.Info("task run completed", logx.Duration("took", rec.Duration))
	}

	s.record(ctx, rec, log)
}

// execute isolates one run: a panic inside Run comes back as an error.
func execute(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task run: %v\n%s", r, debug.Stack())
		}
	}()
	return t.Run(ctx)
}

func (s *Service) record(ctx context.Context, rec RunRecord, log logx.Logger) {
	s.hmu.Lock()
	s.history = append(s.history, rec)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.hmu.Unlock()

	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	if store != nil {
		if err := store.RecordRun(ctx, rec); err != nil {
			log.Warn("failed persisting run record", logx.Err(err))
		}
	}
}
