package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"job-board/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// JobRepository reads the jobs table owned by the job service.
type JobRepository struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ domain.JobRepository = (*JobRepository)(nil)

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db, tracer: otel.Tracer("job-board-postgres-repo")}
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	ctx, span := r.tracer.Start(ctx, "repo.postgres.GetJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	row := r.db.QueryRowContext(ctx, `SELECT id, title, posted_by FROM jobs WHERE id = $1`, id)
	var job domain.Job
	if err := row.Scan(&job.ID, &job.Title, &job.PostedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load job")
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return &job, nil
}
