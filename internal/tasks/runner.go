package tasks

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

const (
	historySuccess         = "success"
	historyFailure         = "failure"
	historyHandlerNotFound = "handler_not_found"
)

// Runner executes due scheduled tasks. Retrying a partial failure is the
// handler's job; the runner runs each claimed task exactly once.
type Runner struct {
	db       *gorm.DB
	registry *Registry
	now      services.Clock
}

func NewRunner(db *gorm.DB, registry *Registry, clock services.Clock) *Runner {
	if clock == nil {
		clock = time.Now
	}
	return &Runner{db: db, registry: registry, now: clock}
}

// Run polls every interval until ctx is cancelled, starting with an
// immediate pass
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.ProcessDue(ctx)
	for {
		select {
		case <-ticker.C:
			r.ProcessDue(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessDue runs every active task whose due time has passed and returns
// how many were executed
func (r *Runner) ProcessDue(ctx context.Context) int {
	var pending []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due, id").
		Find(&pending).Error
	if err != nil {
		slog.Error("failed to fetch pending tasks", "err", err)
		return 0
	}
	if len(pending) == 0 {
		slog.Debug("no pending tasks")
		return 0
	}
	slog.Info("processing pending tasks", "count", len(pending))

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			break
		}
		if !r.claim(ctx, task.ID) {
			continue
		}
		r.execute(ctx, task)
		ran++
	}
	return ran
}

// claim moves the task to running so a second worker skips it
func (r *Runner) claim(ctx context.Context, id uint) bool {
	res := r.db.WithContext(ctx).Model(&models.ScheduledTask{}).
		Where("id = ? AND status = ?", id, models.ScheduledTaskStatusActive).
		Update("status", models.ScheduledTaskStatusRunning)
	if res.Error != nil {
		slog.Error("failed to claim task", "task_id", id, "err", res.Error)
		return false
	}
	return res.RowsAffected == 1
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) {
	log := slog.With("task", task.TaskName, "task_id", task.ID)
	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	startTime := r.now()
	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Warn("task handler not found")
		r.record(ctx, task, startTime, 0, historyHandlerNotFound, map[string]interface{}{"error": "Handler not found"})
		r.update(ctx, task, map[string]interface{}{
			"last_run": startTime,
			"status":   models.ScheduledTaskStatusFailure,
		})
		return
	}

	began := time.Now()
	result, err := handler(ctx, task)
	runtime := time.Since(began)

	status := historySuccess
	if err != nil {
		status = historyFailure
		result = map[string]interface{}{"error": err.Error()}
		log.Error("task failed", "err", err)
	} else {
		log.Info("task completed", "runtime_ms", runtime.Milliseconds())
	}
	r.record(ctx, task, startTime, runtime, status, result)

	next := models.ScheduledTaskStatusDone
	if err != nil {
		next = models.ScheduledTaskStatusFailure
	}
	updates := map[string]interface{}{"last_run": startTime, "status": next}
	if task.TaskType == models.ScheduledTaskTypeRecurring {
		// a failed run does not stop the schedule
		if nextDue := task.NextDue(startTime); nextDue.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = nextDue
		}
	}
	r.update(ctx, task, updates)
}

func (r *Runner) record(ctx context.Context, task models.ScheduledTask, runAt time.Time, runtime time.Duration, status string, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		RuntimeMs:       int(runtime.Milliseconds()),
		Status:          status,
		AttemptNumber:   attemptOf(task),
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := r.db.WithContext(ctx).Create(&history).Error; err != nil {
		slog.Error("failed to write task history", "task_id", task.ID, "err", err)
	}
}

func (r *Runner) update(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) {
	if err := r.db.WithContext(ctx).Model(&task).Updates(updates).Error; err != nil {
		slog.Error("failed to update task", "task_id", task.ID, "err", err)
	}
}

// attemptOf is 1-based; handlers that reschedule themselves carry attempt_count
func attemptOf(task models.ScheduledTask) int {
	if n, ok := argUint(task.Arguments, "attempt_count"); ok {
		return int(n) + 1
	}
	return 1
}
