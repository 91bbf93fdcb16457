package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// StaleJobCleaner defines the job maintenance operations this command needs.
type StaleJobCleaner interface {
	// FailStale marks in-progress jobs untouched for longer than olderThan as failed.
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)

	// CleanupExpired removes jobs past their deletion date along with their stored objects.
	CleanupExpired(ctx context.Context) (int, error)
}

// RunCleanStaleJobs fails stalled jobs and removes jobs past their retention
// date. Jobs stuck in progress for longer than olderThan are marked failed so
// their owners get notified instead of waiting forever.
func RunCleanStaleJobs(
	ctx context.Context,
	jobs StaleJobCleaner,
	logger *slog.Logger,
	w io.Writer,
	olderThan time.Duration,
) error {
	logger.Info("cleaning stale jobs", slog.Duration("older_than", olderThan))

	failed, err := jobs.FailStale(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("failed to fail stale jobs: %w", err)
	}

	removed, err := jobs.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired jobs: %w", err)
	}

	fmt.Fprintf(w, "Marked %d stale job(s) as failed\n", failed)
	fmt.Fprintf(w, "Removed %d expired job(s)\n", removed)

	logger.Info("stale job cleanup completed",
		slog.Int("failed", failed),
		slog.Int("removed", removed),
	)

	return nil
}
