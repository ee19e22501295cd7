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

// IdentityRepository reads the users table owned by the user service.
type IdentityRepository struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ domain.IdentityRepository = (*IdentityRepository)(nil)

func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db, tracer: otel.Tracer("job-board-postgres-repo")}
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	ctx, span := r.tracer.Start(ctx, "repo.postgres.GetIdentity")
	defer span.End()
	span.SetAttributes(attribute.String("identity.id", id))

	row := r.db.QueryRowContext(ctx, `SELECT id, name, email, phone, address, role, resume_public_id, resume_url
		FROM users WHERE id = $1`, id)

	var (
		identity domain.Identity
		role     string
		publicID sql.NullString
		url      sql.NullString
	)
	if err := row.Scan(&identity.ID, &identity.Name, &identity.Email, &identity.Phone, &identity.Address, &role, &publicID, &url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load identity")
		return nil, fmt.Errorf("failed to load identity %s: %w", id, err)
	}
	identity.Role = domain.Role(role)
	if url.Valid && url.String != "" {
		identity.Resume = &domain.ResumeRef{Identifier: publicID.String, URL: url.String}
	}
	return &identity, nil
}

// UpdateResume swaps the stored résumé in one statement and returns the reference it replaced.
func (r *IdentityRepository) UpdateResume(ctx context.Context, id string, ref domain.ResumeRef) (*domain.ResumeRef, error) {
	ctx, span := r.tracer.Start(ctx, "repo.postgres.UpdateIdentityResume")
	defer span.End()
	span.SetAttributes(attribute.String("identity.id", id))

	row := r.db.QueryRowContext(ctx, `UPDATE users u
		SET resume_public_id = $2, resume_url = $3, updated_at = now()
		FROM (SELECT id, resume_public_id, resume_url FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.resume_public_id, old.resume_url`, id, ref.Identifier, ref.URL)

	var publicID, url sql.NullString
	if err := row.Scan(&publicID, &url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update identity resume")
		return nil, fmt.Errorf("failed to update resume for identity %s: %w", id, err)
	}
	if !url.Valid || url.String == "" {
		return nil, nil
	}
	return &domain.ResumeRef{Identifier: publicID.String, URL: url.String}, nil
}
