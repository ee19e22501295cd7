package domain

import "context"

// Task is a named piece of background maintenance run on a cron schedule.
type Task struct {
	Name string
	// Spec is a cron expression with a leading seconds field.
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler triggers tasks on their schedules.
type Scheduler interface {
	// Start runs the scheduler until ctx is done.
	Start(ctx context.Context) error
	AddTask(task Task) error
	RemoveTask(name string) error
}
