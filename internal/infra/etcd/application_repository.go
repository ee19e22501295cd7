// internal/infra/etcd/application_repository.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"job-board/internal/domain"
	"job-board/internal/metrics"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ApplicationDir = "/jobboard/applications/"
	// JobSeekerIndexDir holds {job}/{seeker} -> application id; its existence is the uniqueness guard.
	JobSeekerIndexDir = "/jobboard/index/job-seeker/"
	SeekerIndexDir    = "/jobboard/index/seeker/"
	EmployerIndexDir  = "/jobboard/index/employer/"

	// DefaultMaxRetries bounds the read-modify-write loop in Mutate.
	DefaultMaxRetries = 5

	// etcd rejects transactions with more than 128 operations by default.
	maxOpsPerTxn = 64
)

type etcdApplicationRepository struct {
	client     *clientv3.Client
	maxRetries int
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewEtcdApplicationRepository creates the application ledger backed by etcd.
func NewEtcdApplicationRepository(client *clientv3.Client, maxRetries int, logger *slog.Logger) domain.ApplicationRepository {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &etcdApplicationRepository{
		client:     client,
		maxRetries: maxRetries,
		logger:     logger.With("component", "etcd-application-repo"),
		tracer:     otel.Tracer("job-board-etcd-repo"),
	}
}

// Every caller-supplied segment is path-escaped so no id can leave its prefix.
func applicationKey(id string) string {
	return ApplicationDir + url.PathEscape(id)
}

func jobSeekerKey(jobID, seekerID string) string {
	return JobSeekerIndexDir + url.PathEscape(jobID) + "/" + url.PathEscape(seekerID)
}

func seekerIndexPrefix(seekerID string) string {
	return SeekerIndexDir + url.PathEscape(seekerID) + "/"
}

func seekerIndexKey(seekerID, appID string) string {
	return seekerIndexPrefix(seekerID) + url.PathEscape(appID)
}

func employerIndexPrefix(employerID string) string {
	return EmployerIndexDir + url.PathEscape(employerID) + "/"
}

func employerIndexKey(employerID, appID string) string {
	return employerIndexPrefix(employerID) + url.PathEscape(appID)
}

// Create writes the record and its index keys in one transaction guarded by the
// (job, seeker) index key not existing yet.
func (r *etcdApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.CreateApplication")
	defer span.End()

	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to marshal application to JSON: %w", err)
	}

	appKey := applicationKey(app.ID)
	uniqueKey := jobSeekerKey(app.JobInfo.JobID, app.JobSeekerInfo.IdentityID)
	span.SetAttributes(
		attribute.String("application.id", app.ID),
		attribute.String("etcd.key", appKey),
	)

	resp, err := r.client.Txn(ctx).
		If(
			clientv3.Compare(clientv3.CreateRevision(uniqueKey), "=", 0),
			clientv3.Compare(clientv3.CreateRevision(appKey), "=", 0),
		).
		Then(
			clientv3.OpPut(appKey, string(data)),
			clientv3.OpPut(uniqueKey, app.ID),
			clientv3.OpPut(seekerIndexKey(app.JobSeekerInfo.IdentityID, app.ID), ""),
			clientv3.OpPut(employerIndexKey(app.EmployerInfo.IdentityID, app.ID), ""),
		).
		Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create application in etcd")
		return fmt.Errorf("failed to save application %s to etcd: %w", app.ID, err)
	}
	if !resp.Succeeded {
		span.SetStatus(codes.Error, "duplicate application")
		return domain.ErrDuplicateApplication
	}
	return nil
}

func (r *etcdApplicationRepository) Get(ctx context.Context, id string) (*domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetApplication")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", id))

	app, _, err := r.read(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get application from etcd")
	}
	return app, err
}

func (r *etcdApplicationRepository) FindByJobAndSeeker(ctx context.Context, jobID, seekerID string) (*domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.FindApplicationByJobAndSeeker")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", jobID),
		attribute.String("seeker.id", seekerID),
	)

	resp, err := r.client.Get(ctx, jobSeekerKey(jobID, seekerID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read job-seeker index")
		return nil, fmt.Errorf("failed to read application index for job %s: %w", jobID, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, domain.ErrApplicationNotFound
	}

	app, _, err := r.read(ctx, string(resp.Kvs[0].Value))
	return app, err
}

func (r *etcdApplicationRepository) ListByEmployer(ctx context.Context, employerID string) ([]*domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListApplicationsByEmployer")
	defer span.End()
	span.SetAttributes(attribute.String("employer.id", employerID))

	return r.listByIndex(ctx, span, employerIndexPrefix(employerID))
}

func (r *etcdApplicationRepository) ListBySeeker(ctx context.Context, seekerID string) ([]*domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListApplicationsBySeeker")
	defer span.End()
	span.SetAttributes(attribute.String("seeker.id", seekerID))

	return r.listByIndex(ctx, span, seekerIndexPrefix(seekerID))
}

// Mutate reads the record, applies fn and writes the result only if the record's
// ModRevision is unchanged. Destruction deletes the record and every index key
// in that same transaction.
func (r *etcdApplicationRepository) Mutate(ctx context.Context, id string, fn domain.ApplicationMutation) (*domain.Application, domain.ApplicationChange, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.MutateApplication")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", id))

	key := applicationKey(id)
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		app, revision, err := r.read(ctx, id)
		if err != nil {
			return nil, domain.ChangeNone, err
		}

		change, err := fn(app)
		if err != nil {
			return app, domain.ChangeNone, err
		}

		var ops []clientv3.Op
		switch change {
		case domain.ChangeNone:
			return app, domain.ChangeNone, nil
		case domain.ChangeSave:
			data, err := json.Marshal(app)
			if err != nil {
				return nil, domain.ChangeNone, fmt.Errorf("failed to marshal application to JSON: %w", err)
			}
			ops = []clientv3.Op{clientv3.OpPut(key, string(data))}
		case domain.ChangeDestroy:
			ops = []clientv3.Op{
				clientv3.OpDelete(key),
				clientv3.OpDelete(jobSeekerKey(app.JobInfo.JobID, app.JobSeekerInfo.IdentityID)),
				clientv3.OpDelete(seekerIndexKey(app.JobSeekerInfo.IdentityID, app.ID)),
				clientv3.OpDelete(employerIndexKey(app.EmployerInfo.IdentityID, app.ID)),
			}
		default:
			return nil, domain.ChangeNone, fmt.Errorf("unknown application change %d", change)
		}

		resp, err := r.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", revision)).
			Then(ops...).
			Commit()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to commit application change")
			return nil, domain.ChangeNone, fmt.Errorf("failed to write application %s to etcd: %w", id, err)
		}
		if resp.Succeeded {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return app, change, nil
		}

		metrics.LedgerWriteConflictsTotal.Inc()
		r.logger.Debug("application changed concurrently, retrying", "application_id", id, "attempt", attempt)
	}

	span.SetStatus(codes.Error, "retries exhausted")
	return nil, domain.ChangeNone, domain.ErrLedgerContention
}

func (r *etcdApplicationRepository) CountByState(ctx context.Context) (map[domain.State]int, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.CountApplications")
	defer span.End()

	resp, err := r.client.Get(ctx, ApplicationDir, clientv3.WithPrefix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list applications from etcd")
		return nil, fmt.Errorf("failed to list applications from etcd: %w", err)
	}
	span.SetAttributes(attribute.Int("etcd.kv_count", len(resp.Kvs)))

	counts := map[domain.State]int{
		domain.StateActive:              0,
		domain.StateWithdrawnBySeeker:   0,
		domain.StateWithdrawnByEmployer: 0,
	}
	for _, kv := range resp.Kvs {
		var app domain.Application
		if err := json.Unmarshal(kv.Value, &app); err != nil {
			r.logger.Warn("failed to unmarshal application from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		counts[app.State()]++
	}
	return counts, nil
}

// read returns the application and the ModRevision it was read at.
func (r *etcdApplicationRepository) read(ctx context.Context, id string) (*domain.Application, int64, error) {
	resp, err := r.client.Get(ctx, applicationKey(id))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get application %s from etcd: %w", id, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, domain.ErrApplicationNotFound
	}

	kv := resp.Kvs[0]
	var app domain.Application
	if err := json.Unmarshal(kv.Value, &app); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal application %s from JSON: %w", id, err)
	}
	return &app, kv.ModRevision, nil
}

// listByIndex resolves the application ids stored under an index prefix and
// fetches the records in batched read transactions.
func (r *etcdApplicationRepository) listByIndex(ctx context.Context, span trace.Span, prefix string) ([]*domain.Application, error) {
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read application index")
		return nil, fmt.Errorf("failed to read application index %s: %w", prefix, err)
	}

	ids := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id, err := url.PathUnescape(strings.TrimPrefix(string(kv.Key), prefix))
		if err != nil {
			r.logger.Warn("skipping malformed index key", "key", string(kv.Key), "error", err)
			continue
		}
		ids = append(ids, id)
	}

	apps := make([]*domain.Application, 0, len(ids))
	for start := 0; start < len(ids); start += maxOpsPerTxn {
		end := min(start+maxOpsPerTxn, len(ids))

		ops := make([]clientv3.Op, 0, end-start)
		for _, id := range ids[start:end] {
			ops = append(ops, clientv3.OpGet(applicationKey(id)))
		}
		txnResp, err := r.client.Txn(ctx).Then(ops...).Commit()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch applications")
			return nil, fmt.Errorf("failed to fetch applications for %s: %w", prefix, err)
		}

		for _, op := range txnResp.Responses {
			for _, kv := range op.GetResponseRange().Kvs {
				var app domain.Application
				if err := json.Unmarshal(kv.Value, &app); err != nil {
					r.logger.Warn("failed to unmarshal application from etcd", "key", string(kv.Key), "error", err)
					continue
				}
				apps = append(apps, &app)
			}
		}
	}
	span.SetAttributes(attribute.Int("applications_returned", len(apps)))
	return apps, nil
}
