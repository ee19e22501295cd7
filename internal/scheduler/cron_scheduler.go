// internal/scheduler/cron_scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"job-board/internal/domain"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// cronScheduler triggers maintenance tasks on their cron schedules.
type cronScheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	tasks   map[string]cron.EntryID
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
	runCtx  context.Context
}

// NewCronScheduler builds a scheduler whose specs carry a leading seconds field.
// Each run is bounded by timeout and a run still in progress skips the next tick.
func NewCronScheduler(timeout time.Duration, logger *slog.Logger) domain.Scheduler {
	logger = logger.With("component", "cron-scheduler")
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	return &cronScheduler{
		cron:    c,
		tasks:   make(map[string]cron.EntryID),
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("job-board-scheduler"),
		runCtx:  context.Background(),
	}
}

func (s *cronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.logger.Info("cron scheduler started")
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopping...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("cron scheduler stopped")
	return ctx.Err()
}

// AddTask schedules task, replacing any task with the same name.
func (s *cronScheduler) AddTask(task domain.Task) error {
	if task.Name == "" || task.Run == nil {
		return fmt.Errorf("task needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.tasks[task.Name]; ok {
		s.cron.Remove(entryID)
		delete(s.tasks, task.Name)
	}

	wrapper := &cronTaskWrapper{
		task:      task,
		scheduler: s,
		logger:    s.logger.With("task", task.Name),
	}
	entryID, err := s.cron.AddJob(task.Spec, wrapper)
	if err != nil {
		s.logger.Error("failed to add task to cron", "task", task.Name, "error", err)
		return fmt.Errorf("invalid schedule %q for task %s: %w", task.Spec, task.Name, err)
	}

	s.tasks[task.Name] = entryID
	s.logger.Info("added task to scheduler", "task", task.Name, "schedule", task.Spec)
	return nil
}

// RemoveTask removes a task from the scheduler.
func (s *cronScheduler) RemoveTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.tasks[name]; ok {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
		s.logger.Info("removed task from scheduler", "task", name)
	}
	return nil
}

func (s *cronScheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}

type cronTaskWrapper struct {
	task      domain.Task
	scheduler *cronScheduler
	logger    *slog.Logger
}

// Run is called by the cron library.
func (w *cronTaskWrapper) Run() {
	ctx := w.scheduler.baseContext()
	if w.scheduler.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.scheduler.timeout)
		defer cancel()
	}
	ctx, span := w.scheduler.tracer.Start(ctx, "scheduler.RunTask",
		trace.WithAttributes(attribute.String("task.name", w.task.Name)))
	defer span.End()

	start := time.Now()
	if err := w.task.Run(ctx); err != nil {
		w.logger.Error("task failed", "error", err, "duration", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed")
		return
	}
	w.logger.Debug("task finished", "duration", time.Since(start))
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
