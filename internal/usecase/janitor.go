package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"job-board/internal/domain"
	"job-board/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultSweepBatch = 100

// Janitor runs the leader-only maintenance tasks.
type Janitor struct {
	blobs     domain.BlobStore
	orphans   domain.OrphanRepository
	apps      domain.ApplicationRepository
	batchSize int
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewJanitor(blobs domain.BlobStore, orphans domain.OrphanRepository, apps domain.ApplicationRepository, logger *slog.Logger) *Janitor {
	return &Janitor{
		blobs:     blobs,
		orphans:   orphans,
		apps:      apps,
		batchSize: defaultSweepBatch,
		logger:    logger.With("component", "janitor"),
		tracer:    otel.Tracer("job-board-usecase"),
	}
}

// SweepOrphans retries the delete of every queued orphan blob. A blob that is
// already gone counts as deleted.
func (j *Janitor) SweepOrphans(ctx context.Context) error {
	ctx, span := j.tracer.Start(ctx, "janitor.SweepOrphans")
	defer span.End()

	orphans, err := j.orphans.List(ctx, j.batchSize)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to list orphan blobs: %w", err)
	}

	var removed, failed int
	for _, orphan := range orphans {
		if ctx.Err() != nil {
			break
		}
		err := j.blobs.Delete(ctx, orphan.Identifier)
		if err != nil && !errors.Is(err, domain.ErrBlobNotFound) {
			failed++
			j.logger.Warn("orphan blob delete failed", "blob_id", orphan.Identifier, "attempts", orphan.Attempts+1, "error", err)
			if merr := j.orphans.MarkFailed(ctx, orphan.Identifier, err); merr != nil {
				j.logger.Error("failed to record orphan failure", "blob_id", orphan.Identifier, "error", merr)
			}
			continue
		}
		if err := j.orphans.Remove(ctx, orphan.Identifier); err != nil {
			failed++
			j.logger.Error("failed to dequeue orphan blob", "blob_id", orphan.Identifier, "error", err)
			continue
		}
		removed++
	}

	pending, err := j.orphans.List(ctx, 0)
	if err == nil {
		metrics.OrphanBlobsPending.Set(float64(len(pending)))
	}

	span.SetAttributes(attribute.Int("orphans.removed", removed), attribute.Int("orphans.failed", failed))
	if removed > 0 || failed > 0 {
		j.logger.Info("orphan sweep finished", "removed", removed, "failed", failed)
	}
	return nil
}

// PublishStats refreshes the per-state application gauges.
func (j *Janitor) PublishStats(ctx context.Context) error {
	ctx, span := j.tracer.Start(ctx, "janitor.PublishStats")
	defer span.End()

	counts, err := j.apps.CountByState(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to count applications: %w", err)
	}
	for state, n := range counts {
		metrics.Applications.WithLabelValues(string(state)).Set(float64(n))
	}
	j.logger.Debug("application stats published", "counts", counts)
	return nil
}

// Tasks returns the janitor's cron tasks.
func (j *Janitor) Tasks(sweepSpec, statsSpec string) []domain.Task {
	return []domain.Task{
		{Name: "orphan-sweep", Spec: sweepSpec, Run: j.SweepOrphans},
		{Name: "ledger-stats", Spec: statsSpec, Run: j.PublishStats},
	}
}
