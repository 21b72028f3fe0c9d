package tasks

import (
	"context"
	"log/slog"

	"gymhub_app_echo/internal/models"
)

// LogInfoTask writes its message argument to the log. Operators use it to
// check that the worker is picking tasks up.
type LogInfoTask struct{}

func (t *LogInfoTask) TaskID() string {
	return models.TaskLogInfo
}

func (t *LogInfoTask) HandleExecution(_ context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	slog.Info("log_info task", "task_id", task.ID, "message", message)

	return map[string]interface{}{
		"status":      "success",
		"message":     message,
		"max_attempt": task.MaxAttempt,
	}, nil
}
