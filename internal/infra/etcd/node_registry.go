package etcd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"job-board/internal/metrics"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// NodeRegistryPrefix is where API nodes announce themselves.
const NodeRegistryPrefix = "/jobboard/nodes/"

var errNotRegistered = errors.New("node is not registered")

// NodeRegistry keeps this API node's membership key alive under a lease.
type NodeRegistry struct {
	client  *clientv3.Client
	logger  *slog.Logger
	mu      sync.Mutex
	leaseID clientv3.LeaseID
	key     string
}

func NewNodeRegistry(client *clientv3.Client, logger *slog.Logger) *NodeRegistry {
	return &NodeRegistry{
		client: client,
		logger: logger.With("component", "node-registry"),
	}
}

// Register puts nodeID -> addr under a lease and keeps the lease alive until Deregister.
func (r *NodeRegistry) Register(ctx context.Context, nodeID, addr string, ttl time.Duration) error {
	seconds := int64(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	lease, err := r.client.Grant(ctx, seconds)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}

	key := NodeRegistryPrefix + nodeID
	if _, err := r.client.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("failed to put node registration key: %w", err)
	}

	keepAlive, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return fmt.Errorf("failed to start keep-alive: %w", err)
	}
	go func() {
		for ka := range keepAlive {
			r.logger.Debug("lease keep-alive refreshed", "lease_id", ka.ID, "ttl", ka.TTL)
		}
		r.logger.Warn("keep-alive channel closed, node registration may have expired", "key", key)
	}()

	r.mu.Lock()
	r.leaseID, r.key = lease.ID, key
	r.mu.Unlock()
	r.logger.Info("node registered", "key", key, "addr", addr)
	return nil
}

// Alive reports an error when the registration lease has expired.
func (r *NodeRegistry) Alive(ctx context.Context) error {
	r.mu.Lock()
	leaseID := r.leaseID
	r.mu.Unlock()
	if leaseID == 0 {
		return errNotRegistered
	}
	resp, err := r.client.TimeToLive(ctx, leaseID)
	if err != nil {
		return fmt.Errorf("failed to read lease: %w", err)
	}
	if resp.TTL <= 0 {
		return errNotRegistered
	}
	return nil
}

// Deregister revokes the lease, which deletes the membership key.
func (r *NodeRegistry) Deregister(ctx context.Context) error {
	r.mu.Lock()
	leaseID, key := r.leaseID, r.key
	r.leaseID = 0
	r.mu.Unlock()
	if leaseID == 0 {
		return nil
	}
	r.logger.Info("deregistering node", "key", key)
	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	return nil
}

// NodeDiscovery tracks the API nodes currently registered.
type NodeDiscovery struct {
	client *clientv3.Client
	logger *slog.Logger
	mu     sync.RWMutex
	nodes  map[string]string
}

func NewNodeDiscovery(client *clientv3.Client, logger *slog.Logger) *NodeDiscovery {
	return &NodeDiscovery{
		client: client,
		logger: logger.With("component", "node-discovery"),
		nodes:  make(map[string]string),
	}
}

// Watch loads the current members and follows changes until ctx is done.
func (d *NodeDiscovery) Watch(ctx context.Context) {
	d.logger.Info("starting to watch api nodes")

	rev, err := d.load(ctx)
	if err != nil {
		d.logger.Error("failed to perform initial node load", "error", err)
	}

	opts := []clientv3.OpOption{clientv3.WithPrefix()}
	if rev > 0 {
		opts = append(opts, clientv3.WithRev(rev+1))
	}
	for resp := range d.client.Watch(ctx, NodeRegistryPrefix, opts...) {
		d.mu.Lock()
		for _, event := range resp.Events {
			id := strings.TrimPrefix(string(event.Kv.Key), NodeRegistryPrefix)
			switch event.Type {
			case clientv3.EventTypePut:
				if _, ok := d.nodes[id]; !ok {
					d.logger.Info("api node joined", "node_id", id, "addr", string(event.Kv.Value))
				}
				d.nodes[id] = string(event.Kv.Value)
			case clientv3.EventTypeDelete:
				d.logger.Info("api node left", "node_id", id)
				delete(d.nodes, id)
			}
		}
		metrics.ClusterNodes.Set(float64(len(d.nodes)))
		d.mu.Unlock()
	}
	d.logger.Info("stopped watching api nodes")
}

func (d *NodeDiscovery) load(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := d.client.Get(ctx, NodeRegistryPrefix, clientv3.WithPrefix())
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, kv := range resp.Kvs {
		d.nodes[strings.TrimPrefix(string(kv.Key), NodeRegistryPrefix)] = string(kv.Value)
	}
	metrics.ClusterNodes.Set(float64(len(d.nodes)))
	return resp.Header.Revision, nil
}

// Nodes returns the registered node ids, sorted.
func (d *NodeDiscovery) Nodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
