package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"job-board/internal/domain"
	"job-board/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ResolvedResume is the résumé picked for one submission.
type ResolvedResume struct {
	Ref domain.ResumeRef
	// Uploaded is true when Ref was uploaded by this call and nothing references it yet.
	Uploaded bool
}

// ResumeResolver picks the résumé a submission is filed with.
type ResumeResolver struct {
	blobs         domain.BlobStore
	folder        string
	uploadTimeout time.Duration
	logger        *slog.Logger
	tracer        trace.Tracer
}

func NewResumeResolver(blobs domain.BlobStore, uploadTimeout time.Duration, logger *slog.Logger) *ResumeResolver {
	return &ResumeResolver{
		blobs:         blobs,
		folder:        domain.ResumeFolder,
		uploadTimeout: uploadTimeout,
		logger:        logger.With("component", "resume-resolver"),
		tracer:        otel.Tracer("job-board-usecase"),
	}
}

// Resolve uploads the file when one is given, otherwise falls back to the
// identity's stored résumé. It never touches the identity record.
func (r *ResumeResolver) Resolve(ctx context.Context, identity *domain.Identity, upload *domain.ResumeUpload) (ResolvedResume, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("identity.id", identity.ID), attribute.Bool("resume.uploaded", upload != nil))

	if upload == nil || upload.Body == nil {
		ref, ok := identity.StoredResume()
		if !ok {
			return ResolvedResume{}, domain.ErrNoResumeAvailable
		}
		return ResolvedResume{Ref: ref}, nil
	}

	ref, err := r.upload(ctx, identity.ID, upload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resume upload failed")
		return ResolvedResume{}, err
	}
	return ResolvedResume{Ref: ref, Uploaded: true}, nil
}

func (r *ResumeResolver) upload(ctx context.Context, identityID string, upload *domain.ResumeUpload) (domain.ResumeRef, error) {
	if r.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.uploadTimeout)
		defer cancel()
	}

	name := blobName(identityID, upload.Filename)
	ref, err := r.blobs.Upload(ctx, upload.Body, r.folder, name, upload.ContentType)
	if err != nil {
		metrics.ResumeUploadsTotal.WithLabelValues("failed").Inc()
		r.logger.Error("resume upload failed", "identity_id", identityID, "filename", upload.Filename, "error", err)
		return domain.ResumeRef{}, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	if ref.IsZero() {
		metrics.ResumeUploadsTotal.WithLabelValues("failed").Inc()
		return domain.ResumeRef{}, fmt.Errorf("%w: blob store returned an empty reference", domain.ErrUploadFailed)
	}

	metrics.ResumeUploadsTotal.WithLabelValues("success").Inc()
	r.logger.Info("resume uploaded", "identity_id", identityID, "blob_id", ref.Identifier, "size", upload.Size)
	return ref, nil
}

// blobName keeps the original extension so the stored file still opens with the right viewer.
func blobName(identityID, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if len(ext) > 10 {
		ext = ""
	}
	return identityID + "-" + uuid.NewString() + ext
}
