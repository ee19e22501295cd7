package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"job-board/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProfileService owns the identity's long-lived résumé.
type ProfileService struct {
	identities domain.IdentityRepository
	apps       domain.ApplicationRepository
	resolver   *ResumeResolver
	reclaimer  *BlobReclaimer
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewProfileService(identities domain.IdentityRepository, apps domain.ApplicationRepository, resolver *ResumeResolver, reclaimer *BlobReclaimer, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		identities: identities,
		apps:       apps,
		resolver:   resolver,
		reclaimer:  reclaimer,
		logger:     logger.With("component", "profile-service"),
		tracer:     otel.Tracer("job-board-usecase"),
	}
}

// ReplaceStoredResume uploads the new file, points the identity at it and only
// then deletes the previous blob. Applications filed with the old résumé keep
// their own reference, so the old blob is only removed when no application uses it.
func (s *ProfileService) ReplaceStoredResume(ctx context.Context, identityID string, upload *domain.ResumeUpload) (domain.ResumeRef, error) {
	ctx, span := s.tracer.Start(ctx, "service.ReplaceStoredResume")
	defer span.End()
	span.SetAttributes(attribute.String("identity.id", identityID))

	if upload == nil || upload.Body == nil {
		return domain.ResumeRef{}, fmt.Errorf("%w: resume file is required", domain.ErrValidation)
	}
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return domain.ResumeRef{}, err
	}

	resolved, err := s.resolver.Resolve(ctx, identity, upload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resume upload failed")
		return domain.ResumeRef{}, err
	}

	previous, err := s.identities.UpdateResume(ctx, identity.ID, resolved.Ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store resume reference")
		s.reclaimer.Reclaim(ctx, resolved.Ref, "profile update not persisted")
		return domain.ResumeRef{}, fmt.Errorf("failed to store resume reference: %w", err)
	}

	if previous != nil && previous.Identifier != "" && previous.Identifier != resolved.Ref.Identifier {
		s.releasePrevious(ctx, identity.ID, *previous)
	}
	s.logger.Info("stored resume replaced", "identity_id", identity.ID, "blob_id", resolved.Ref.Identifier)
	return resolved.Ref, nil
}

func (s *ProfileService) releasePrevious(ctx context.Context, identityID string, previous domain.ResumeRef) {
	used, err := s.referenced(ctx, identityID, previous)
	if err != nil {
		s.logger.Warn("could not check resume references, keeping old blob", "blob_id", previous.Identifier, "error", err)
		return
	}
	if used {
		s.logger.Info("old resume still referenced by an application, keeping blob", "blob_id", previous.Identifier)
		return
	}
	s.reclaimer.Reclaim(ctx, previous, "replaced stored resume")
}

func (s *ProfileService) referenced(ctx context.Context, seekerID string, ref domain.ResumeRef) (bool, error) {
	apps, err := s.apps.ListBySeeker(ctx, seekerID)
	if err != nil {
		return false, err
	}
	for _, app := range apps {
		if app.JobSeekerInfo.Resume.Identifier == ref.Identifier {
			return true, nil
		}
	}
	return false, nil
}
