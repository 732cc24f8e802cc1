package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amd/internal/scheduler"
	"amd/pkg/logx"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "amd.db"), logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndReadBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := scheduler.RunRecord{
		Task:      "status-update-check",
		StartedAt: time.Date(2024, 9, 12, 5, 0, 0, 0, time.UTC),
		Duration:  1200 * time.Millisecond,
	}
	second := scheduler.RunRecord{
		Task:      "lab-attendance-check",
		StartedAt: time.Date(2024, 9, 12, 18, 0, 0, 0, time.UTC),
		Duration:  300 * time.Millisecond,
		Error:     "fetch attendance: root responded with status 502 Bad Gateway",
	}
	require.NoError(t, s.RecordRun(ctx, first))
	require.NoError(t, s.RecordRun(ctx, second))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "lab-attendance-check", runs[0].Task)
	assert.Contains(t, runs[0].Error, "502")
	assert.Equal(t, "status-update-check", runs[1].Task)
	assert.Empty(t, runs[1].Error)
	assert.True(t, runs[1].StartedAt.Equal(first.StartedAt))
}

func TestRecentRunsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, s.RecordRun(ctx, scheduler.RunRecord{
			Task:      "status-update-check",
			StartedAt: time.Now(),
			Duration:  time.Second,
		}))
	}

	runs, err := s.RecentRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", logx.Nop())
	require.Error(t, err)
}
