package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"job-board/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	OrphanDir = "/jobboard/orphans/"
)

type etcdOrphanRepository struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdOrphanRepository creates the queue of blobs awaiting deletion.
func NewEtcdOrphanRepository(client *clientv3.Client, logger *slog.Logger) domain.OrphanRepository {
	return &etcdOrphanRepository{
		client: client,
		logger: logger.With("component", "etcd-orphan-repo"),
		tracer: otel.Tracer("job-board-etcd-orphan-repo"),
	}
}

// Blob identifiers may contain slashes, so they are escaped into a single key segment.
func orphanKey(identifier string) string {
	return OrphanDir + url.PathEscape(identifier)
}

func (r *etcdOrphanRepository) Add(ctx context.Context, orphan domain.OrphanBlob) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.AddOrphan")
	defer span.End()
	span.SetAttributes(attribute.String("blob.identifier", orphan.Identifier))

	data, err := json.Marshal(orphan)
	if err != nil {
		return fmt.Errorf("failed to marshal orphan blob to JSON: %w", err)
	}
	if _, err := r.client.Put(ctx, orphanKey(orphan.Identifier), string(data)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put orphan blob to etcd")
		return fmt.Errorf("failed to queue orphan blob %s: %w", orphan.Identifier, err)
	}
	return nil
}

// List returns queued orphans, oldest first.
func (r *etcdOrphanRepository) List(ctx context.Context, limit int) ([]domain.OrphanBlob, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListOrphans")
	defer span.End()

	opts := []clientv3.OpOption{
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortAscend),
	}
	if limit > 0 {
		opts = append(opts, clientv3.WithLimit(int64(limit)))
	}
	resp, err := r.client.Get(ctx, OrphanDir, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list orphan blobs from etcd")
		return nil, fmt.Errorf("failed to list orphan blobs from etcd: %w", err)
	}

	orphans := make([]domain.OrphanBlob, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var orphan domain.OrphanBlob
		if err := json.Unmarshal(kv.Value, &orphan); err != nil {
			r.logger.Warn("failed to unmarshal orphan blob from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		orphans = append(orphans, orphan)
	}
	return orphans, nil
}

func (r *etcdOrphanRepository) Remove(ctx context.Context, identifier string) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.RemoveOrphan")
	defer span.End()
	span.SetAttributes(attribute.String("blob.identifier", identifier))

	if _, err := r.client.Delete(ctx, orphanKey(identifier)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete orphan blob from etcd")
		return fmt.Errorf("failed to remove orphan blob %s: %w", identifier, err)
	}
	return nil
}

// MarkFailed bumps the attempt counter. Losing a race to another writer is fine:
// the counter is informational and the entry itself survives either way.
func (r *etcdOrphanRepository) MarkFailed(ctx context.Context, identifier string, cause error) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.MarkOrphanFailed")
	defer span.End()
	span.SetAttributes(attribute.String("blob.identifier", identifier))

	key := orphanKey(identifier)
	resp, err := r.client.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get orphan blob %s: %w", identifier, err)
	}
	if len(resp.Kvs) == 0 {
		return nil
	}

	var orphan domain.OrphanBlob
	if err := json.Unmarshal(resp.Kvs[0].Value, &orphan); err != nil {
		return fmt.Errorf("failed to unmarshal orphan blob %s: %w", identifier, err)
	}
	orphan.Attempts++
	if cause != nil {
		orphan.LastError = cause.Error()
	}
	data, err := json.Marshal(orphan)
	if err != nil {
		return fmt.Errorf("failed to marshal orphan blob to JSON: %w", err)
	}

	_, err = r.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", resp.Kvs[0].ModRevision)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update orphan blob %s: %w", identifier, err)
	}
	return nil
}
