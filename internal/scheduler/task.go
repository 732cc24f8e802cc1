package scheduler

import (
	"context"
	"time"
)

// Task is one named, independently scheduled unit of recurring work.
//
// Tasks are constructed once at startup with everything they need (API
// client, messenger, channel config) and carry no mutable state of their
// own; whatever data a run needs is fetched fresh inside Run.
type Task interface {
	// Name is a stable human-readable identifier used in logs and run
	// history. Names must be unique among registered tasks.
	Name() string

	// RunIn returns the delay until the task's next run. It is evaluated
	// fresh at the start of every cycle, so a run that started late
	// re-anchors to the intended time-of-day instead of accumulating drift.
	RunIn() time.Duration

	// Run performs one unit of work. Faults (network, malformed upstream
	// data) must be returned as errors, never allowed to escape.
	Run(ctx context.Context) error
}

// RunRecord describes one execution attempt of one task.
type RunRecord struct {
	Task      string
	StartedAt time.Time
	Duration  time.Duration
	Error     string
}

// Store receives run records for persistence. Optional; the scheduler also
// keeps a bounded in-memory history.
type Store interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}
