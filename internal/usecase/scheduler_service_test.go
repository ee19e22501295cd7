package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"job-board/internal/domain"
	"job-board/internal/infra/memory"
)

func TestSchedulerServiceRunsTasksWhileLeading(t *testing.T) {
	leader := &memory.SoleLeader{}
	sched := newFakeScheduler()
	tasks := []domain.Task{
		{Name: "orphan-sweep", Spec: "0 * * * * *", Run: func(context.Context) error { return nil }},
	}
	svc := NewSchedulerService(leader, func() domain.Scheduler { return sched }, tasks, "node-1", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(ctx) }()

	select {
	case <-sched.started:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler was not started after winning the election")
	}
	if !leader.IsLeader() {
		t.Error("node should be leader")
	}
	sched.mu.Lock()
	if len(sched.tasks) != 1 || sched.tasks[0].Name != "orphan-sweep" {
		t.Errorf("unexpected scheduled tasks: %+v", sched.tasks)
	}
	sched.mu.Unlock()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler service did not stop")
	}
	<-sched.stopped
	if leader.IsLeader() {
		t.Error("leadership should be resigned on shutdown")
	}
}

func TestSchedulerServiceStopsSchedulerOnLostLeadership(t *testing.T) {
	leader := &memory.SoleLeader{}
	first, second := newFakeScheduler(), newFakeScheduler()
	schedulers := make(chan *fakeScheduler, 2)
	schedulers <- first
	schedulers <- second
	svc := NewSchedulerService(leader, func() domain.Scheduler { return <-schedulers }, nil, "node-1", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Start(ctx) }()

	<-first.started
	if err := leader.Resign(context.Background()); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	select {
	case <-first.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler kept running after leadership was lost")
	}
	select {
	case <-second.started:
	case <-time.After(2 * time.Second):
		t.Fatal("node did not campaign again")
	}
}
