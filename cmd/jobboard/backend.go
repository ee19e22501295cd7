package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	http_api "job-board/internal/api/http"
	"job-board/internal/config"
	"job-board/internal/domain"
	"job-board/internal/infra/etcd"
	"job-board/internal/infra/memory"
)

// ledgerBackend is the coordination layer the services run on.
type ledgerBackend struct {
	apps    domain.ApplicationRepository
	orphans domain.OrphanRepository
	locker  domain.Locker
	leader  domain.LeaderElectionManager
	checks  map[string]http_api.HealthCheck
	close   func(ctx context.Context)
}

func newLedgerBackend(ctx context.Context, cfg *config.Config, nodeID string, logger *slog.Logger) (*ledgerBackend, error) {
	switch cfg.LedgerBackend {
	case "memory":
		logger.Warn("using in-memory ledger; applications are lost on restart and not shared between nodes")
		return &ledgerBackend{
			apps:    memory.NewApplicationRepository(cfg.LedgerMaxRetries),
			orphans: memory.NewOrphanRepository(),
			locker:  memory.NewLocker(),
			leader:  &memory.SoleLeader{},
			checks:  map[string]http_api.HealthCheck{},
			close:   func(context.Context) {},
		}, nil
	case "etcd":
		return newEtcdBackend(ctx, cfg, nodeID, logger)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func newEtcdBackend(ctx context.Context, cfg *config.Config, nodeID string, logger *slog.Logger) (*ledgerBackend, error) {
	client, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	logger.Info("connected to etcd", "endpoints", cfg.EtcdEndpoints)

	registry := etcd.NewNodeRegistry(client, logger)
	regCtx, cancel := context.WithTimeout(ctx, cfg.EtcdTimeout)
	defer cancel()
	if err := registry.Register(regCtx, nodeID, cfg.HttpListenAddr, cfg.LeaderElectionTTL); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to register node: %w", err)
	}

	discovery := etcd.NewNodeDiscovery(client, logger)
	go discovery.Watch(ctx)

	return &ledgerBackend{
		apps:    etcd.NewEtcdApplicationRepository(client, cfg.LedgerMaxRetries, logger),
		orphans: etcd.NewEtcdOrphanRepository(client, logger),
		locker:  etcd.NewEtcdLocker(client),
		leader:  etcd.NewEtcdLeaderElectionManager(client, nodeID, cfg.LeaderElectionTTL, logger),
		checks:  map[string]http_api.HealthCheck{"etcd": registry.Alive},
		close: func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := registry.Deregister(ctx); err != nil {
				logger.Warn("failed to deregister node", "error", err)
			}
			_ = client.Close()
		},
	}, nil
}
