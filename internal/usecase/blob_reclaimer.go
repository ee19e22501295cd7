package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"job-board/internal/domain"
)

const reclaimTimeout = 15 * time.Second

// BlobReclaimer removes uploaded blobs that nothing references any more. A
// delete that fails is queued for the orphan janitor instead of being dropped.
type BlobReclaimer struct {
	blobs   domain.BlobStore
	orphans domain.OrphanRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewBlobReclaimer(blobs domain.BlobStore, orphans domain.OrphanRepository, logger *slog.Logger) *BlobReclaimer {
	return &BlobReclaimer{
		blobs:   blobs,
		orphans: orphans,
		logger:  logger.With("component", "blob-reclaimer"),
		now:     time.Now,
	}
}

// Reclaim runs detached from ctx's cancellation: a request that already timed
// out must still clean up what it uploaded.
func (r *BlobReclaimer) Reclaim(ctx context.Context, ref domain.ResumeRef, reason string) {
	if ref.Identifier == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reclaimTimeout)
	defer cancel()

	err := r.blobs.Delete(ctx, ref.Identifier)
	if err == nil || errors.Is(err, domain.ErrBlobNotFound) {
		r.logger.Info("blob reclaimed", "blob_id", ref.Identifier, "reason", reason)
		return
	}

	r.logger.Warn("blob delete failed, queueing orphan", "blob_id", ref.Identifier, "reason", reason, "error", err)
	orphan := domain.OrphanBlob{
		Identifier: ref.Identifier,
		Reason:     reason,
		RecordedAt: r.now().UTC(),
		Attempts:   1,
		LastError:  err.Error(),
	}
	if qerr := r.orphans.Add(ctx, orphan); qerr != nil {
		r.logger.Error("failed to queue orphan blob", "blob_id", ref.Identifier, "error", qerr)
	}
}
