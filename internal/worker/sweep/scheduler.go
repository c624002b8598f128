package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is a periodic maintenance pass. Run receives the tick time so
// implementations stay testable with injected clocks.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time)
}

// Scheduler runs registered sweep tasks on fixed intervals until its
// context is cancelled.
type Scheduler struct {
	tasks  []Task
	logger *zap.Logger
}

// NewScheduler creates an empty sweep scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.Named("sweep"),
	}
}

// Register adds a task to run every interval.
func (s *Scheduler) Register(name string, interval time.Duration, run func(ctx context.Context, now time.Time)) {
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Run: run})
}

// Start runs all registered tasks and blocks until the context is
// cancelled. A panicking task is logged and restarted on its next tick
// rather than taking the process down.
func (s *Scheduler) Start(ctx context.Context) {
	group, ctx := errgroup.WithContext(ctx)

	for _, task := range s.tasks {
		group.Go(func() error {
			s.runTask(ctx, task)
			return nil
		})
	}

	_ = group.Wait()
	s.logger.Info("Sweep scheduler stopped")
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	s.logger.Info("Starting sweep task",
		zap.String("task", task.Name),
		zap.Duration("interval", task.Interval))

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.safeRun(ctx, task, now)
		}
	}
}

func (s *Scheduler) safeRun(ctx context.Context, task Task, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Sweep task panicked",
				zap.String("task", task.Name),
				zap.Any("panic", r))
		}
	}()

	task.Run(ctx, now)
}
