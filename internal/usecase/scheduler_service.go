package usecase

import (
	"context"
	"log/slog"
	"time"

	"job-board/internal/domain"
)

// SchedulerService runs the maintenance tasks on whichever node holds leadership.
type SchedulerService struct {
	leaderManager domain.LeaderElectionManager
	newScheduler  func() domain.Scheduler
	tasks         []domain.Task
	nodeID        string
	retryDelay    time.Duration
	logger        *slog.Logger
}

// NewSchedulerService takes a scheduler factory: every term of leadership gets
// a fresh scheduler so no entry survives a lost term.
func NewSchedulerService(leaderManager domain.LeaderElectionManager, newScheduler func() domain.Scheduler, tasks []domain.Task, nodeID string, logger *slog.Logger) *SchedulerService {
	return &SchedulerService{
		leaderManager: leaderManager,
		newScheduler:  newScheduler,
		tasks:         tasks,
		nodeID:        nodeID,
		retryDelay:    5 * time.Second,
		logger:        logger.With("component", "scheduler-service", "node_id", nodeID),
	}
}

// Start campaigns for leadership and runs the tasks while leading, until ctx is done.
func (s *SchedulerService) Start(ctx context.Context) error {
	s.logger.Info("scheduler service starting")

	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler service shutting down")
			return ctx.Err()
		}

		s.logger.Info("campaigning for leadership")
		lost, err := s.leaderManager.Campaign(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("leadership campaign failed, retrying", "error", err, "retry_in", s.retryDelay)
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		s.logger.Info("became leader, starting scheduler")
		s.lead(ctx, lost)
	}
}

func (s *SchedulerService) lead(ctx context.Context, lost <-chan struct{}) {
	termCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler := s.newScheduler()
	for _, task := range s.tasks {
		if err := scheduler.AddTask(task); err != nil {
			s.logger.Error("failed to schedule task", "task", task.Name, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Start(termCtx); err != nil && termCtx.Err() == nil {
			s.logger.Error("scheduler stopped unexpectedly", "error", err)
		}
	}()

	select {
	case <-lost:
		s.logger.Warn("leadership lost, stopping scheduler")
	case <-ctx.Done():
	case <-done:
	}
	cancel()
	<-done
	s.resign(ctx)
}

func (s *SchedulerService) resign(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.leaderManager.Resign(ctx); err != nil {
		s.logger.Warn("failed to resign leadership", "error", err)
	}
}
