package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"job-board/internal/domain"
	"job-board/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SubmitRequest is one application attempt by a seeker.
type SubmitRequest struct {
	JobID    string
	SeekerID string
	Details  domain.SeekerDetails
	// Resume is nil when the seeker relies on the résumé stored on their profile.
	Resume *domain.ResumeUpload
}

// ApplicationService implements the application ledger operations.
type ApplicationService struct {
	apps       domain.ApplicationRepository
	identities domain.IdentityRepository
	jobs       domain.JobRepository
	resolver   *ResumeResolver
	reclaimer  *BlobReclaimer
	locker     domain.Locker
	validate   *validator.Validate
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
}

// NewApplicationService wires the ledger. locker may be nil, in which case
// concurrent duplicate submissions are still rejected by the repository but
// both may upload a résumé first.
func NewApplicationService(
	apps domain.ApplicationRepository,
	identities domain.IdentityRepository,
	jobs domain.JobRepository,
	resolver *ResumeResolver,
	reclaimer *BlobReclaimer,
	locker domain.Locker,
	logger *slog.Logger,
) *ApplicationService {
	return &ApplicationService{
		apps:       apps,
		identities: identities,
		jobs:       jobs,
		resolver:   resolver,
		reclaimer:  reclaimer,
		locker:     locker,
		validate:   validator.New(),
		logger:     logger.With("component", "application-service"),
		tracer:     otel.Tracer("job-board-usecase"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Submit files a new application. Nothing is persisted unless the résumé is
// resolved first, and a résumé uploaded by a submission that then fails is reclaimed.
func (s *ApplicationService) Submit(ctx context.Context, req SubmitRequest) (*domain.Application, error) {
	ctx, span := s.tracer.Start(ctx, "service.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", req.JobID), attribute.String("seeker.id", req.SeekerID))

	app, err := s.submit(ctx, req)
	metrics.ApplicationSubmissionsTotal.WithLabelValues(submitResult(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		s.logger.Info("application rejected", "job_id", req.JobID, "seeker_id", req.SeekerID, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("application.id", app.ID))
	s.logger.Info("application submitted", "application_id", app.ID, "job_id", req.JobID, "seeker_id", req.SeekerID)
	return app, nil
}

func (s *ApplicationService) submit(ctx context.Context, req SubmitRequest) (*domain.Application, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	seeker, err := s.identities.GetByID(ctx, req.SeekerID)
	if err != nil {
		return nil, err
	}
	if seeker.Role != domain.RoleJobSeeker {
		return nil, fmt.Errorf("%w: only job seekers can apply", domain.ErrNotAuthorized)
	}

	job, err := s.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		lock, err := s.locker.Lock(ctx, "submit/"+job.ID+"/"+seeker.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock submission: %w", err)
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release submission lock", "job_id", job.ID, "seeker_id", seeker.ID, "error", err)
			}
		}()
	}

	if _, err := s.apps.FindByJobAndSeeker(ctx, job.ID, seeker.ID); err == nil {
		return nil, domain.ErrDuplicateApplication
	} else if !errors.Is(err, domain.ErrApplicationNotFound) {
		return nil, fmt.Errorf("failed to check existing applications: %w", err)
	}

	resume, err := s.resolver.Resolve(ctx, seeker, req.Resume)
	if err != nil {
		return nil, err
	}

	app, err := domain.NewApplication(s.newID(), seeker, req.Details, job, resume.Ref, s.now().UTC())
	if err == nil {
		err = s.apps.Create(ctx, app)
	}
	if err != nil {
		if resume.Uploaded {
			s.reclaimer.Reclaim(ctx, resume.Ref, "submission not persisted")
		}
		return nil, err
	}
	return app, nil
}

func (s *ApplicationService) validateRequest(req SubmitRequest) error {
	var missing []string
	if strings.TrimSpace(req.JobID) == "" {
		missing = append(missing, "job_id")
	}
	if strings.TrimSpace(req.SeekerID) == "" {
		missing = append(missing, "seeker_id")
	}
	if err := s.validate.Struct(req.Details); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		for _, fe := range verrs {
			missing = append(missing, fieldName(fe))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: invalid or missing fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// ListForEmployer returns the applications to the employer's jobs that the employer has not withdrawn.
func (s *ApplicationService) ListForEmployer(ctx context.Context, employerID string) ([]*domain.Application, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListForEmployer")
	defer span.End()
	span.SetAttributes(attribute.String("employer.id", employerID))

	if err := s.requireRole(ctx, employerID, domain.RoleEmployer); err != nil {
		span.RecordError(err)
		return nil, err
	}
	apps, err := s.apps.ListByEmployer(ctx, employerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list applications from repository")
		return nil, err
	}
	return visible(apps, domain.EmployerParty), nil
}

// ListForSeeker returns the seeker's applications that the seeker has not withdrawn.
func (s *ApplicationService) ListForSeeker(ctx context.Context, seekerID string) ([]*domain.Application, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListForSeeker")
	defer span.End()
	span.SetAttributes(attribute.String("seeker.id", seekerID))

	if err := s.requireRole(ctx, seekerID, domain.RoleJobSeeker); err != nil {
		span.RecordError(err)
		return nil, err
	}
	apps, err := s.apps.ListBySeeker(ctx, seekerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list applications from repository")
		return nil, err
	}
	return visible(apps, domain.SeekerParty), nil
}

// Get returns one application to a party that has not withdrawn from it. Anyone
// else gets ErrApplicationNotFound.
func (s *ApplicationService) Get(ctx context.Context, id, actorID string) (*domain.Application, error) {
	ctx, span := s.tracer.Start(ctx, "service.Get")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", id))

	if !isApplicationID(id) {
		return nil, domain.ErrApplicationNotFound
	}
	actor, err := s.identities.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.VisibleTo(app.PartyOf(actor.ID, actor.Role)) {
		return nil, domain.ErrApplicationNotFound
	}
	return app, nil
}

// Withdraw sets the actor's flag on the application and destroys it in the
// same write once both parties have withdrawn. A repeated withdrawal is a no-op.
func (s *ApplicationService) Withdraw(ctx context.Context, id, actorID string) (domain.WithdrawOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "service.Withdraw")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", id), attribute.String("actor.id", actorID))

	if !isApplicationID(id) {
		return domain.WithdrawNoop, domain.ErrApplicationNotFound
	}
	actor, err := s.identities.GetByID(ctx, actorID)
	if err != nil {
		span.RecordError(err)
		return domain.WithdrawNoop, err
	}

	var (
		party   domain.Party
		outcome domain.WithdrawOutcome
	)
	_, _, err = s.apps.Mutate(ctx, id, func(app *domain.Application) (domain.ApplicationChange, error) {
		party = app.PartyOf(actor.ID, actor.Role)
		o, err := app.Withdraw(party, s.now().UTC())
		if err != nil {
			return domain.ChangeNone, err
		}
		outcome = o
		switch o {
		case domain.WithdrawDestroyed:
			return domain.ChangeDestroy, nil
		case domain.WithdrawMarked:
			return domain.ChangeSave, nil
		default:
			return domain.ChangeNone, nil
		}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "withdraw failed")
		s.logger.Info("withdrawal rejected", "application_id", id, "actor_id", actorID, "error", err)
		return domain.WithdrawNoop, err
	}

	metrics.ApplicationWithdrawalsTotal.WithLabelValues(party.String(), string(outcome)).Inc()
	span.SetAttributes(attribute.String("withdraw.party", party.String()), attribute.String("withdraw.outcome", string(outcome)))
	s.logger.Info("application withdrawn", "application_id", id, "party", party.String(), "outcome", string(outcome))
	return outcome, nil
}

// isApplicationID reports whether id has the shape of an id minted by Submit.
func isApplicationID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *ApplicationService) requireRole(ctx context.Context, identityID string, role domain.Role) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.Role != role {
		return fmt.Errorf("%w: %s role required", domain.ErrNotAuthorized, role)
	}
	return nil
}

func visible(apps []*domain.Application, p domain.Party) []*domain.Application {
	out := make([]*domain.Application, 0, len(apps))
	for _, app := range apps {
		if app.VisibleTo(p) {
			out = append(out, app)
		}
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "CoverLetter":
		return "cover_letter"
	default:
		return strings.ToLower(fe.Field())
	}
}

func submitResult(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrDuplicateApplication):
		return "duplicate"
	case errors.Is(err, domain.ErrJobNotFound):
		return "job_not_found"
	case errors.Is(err, domain.ErrNoResumeAvailable):
		return "no_resume"
	case errors.Is(err, domain.ErrUploadFailed):
		return "upload_failed"
	case errors.Is(err, domain.ErrNotAuthorized), errors.Is(err, domain.ErrIdentityNotFound):
		return "unauthorized"
	default:
		return "error"
	}
}
