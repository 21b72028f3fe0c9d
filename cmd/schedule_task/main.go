package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/teambition/rrule-go"

	"gymhub_app_echo/internal/config"
	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

func main() {
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04 in APP_TIMEZONE, or RFC3339)")
	taskType := flag.String("tasktype", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "RFC 5545 RRULE, required for recurring tasks (e.g. FREQ=DAILY)")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts")
	flag.Parse()

	if *taskName == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -task_name <name> -due <YYYY-MM-DD HH:MM> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Load()

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		fail("invalid JSON arguments", err)
	}

	due, err := time.Parse(time.RFC3339, *dueStr)
	if err != nil {
		due, err = time.ParseInLocation("2006-01-02 15:04", *dueStr, cfg.Location)
		if err != nil {
			fail("invalid due date, use '2006-01-02 15:04' or RFC3339", err)
		}
	}

	kind := models.ScheduledTaskType(*taskType)
	var rule *string
	switch kind {
	case models.ScheduledTaskTypeOneTime:
	case models.ScheduledTaskTypeRecurring:
		if *recurring == "" {
			fail("recurring tasks need -recurring", nil)
		}
		if _, err := rrule.StrToRRule(*recurring); err != nil {
			fail("invalid RRULE", err)
		}
		rule = recurring
	default:
		fail("unknown tasktype "+*taskType, nil)
	}

	task, err := models.BuildScheduledTask(*taskName, args, due, rule, kind, *maxAttempt)
	if err != nil {
		fail("failed to build task", err)
	}

	db, err := services.InitDB(cfg.Database)
	if err != nil {
		fail("failed to connect to database", err)
	}
	if err := db.Create(task).Error; err != nil {
		fail("failed to create task", err)
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due.Format(time.RFC3339), task.TaskType)
}

func fail(msg string, err error) {
	if err != nil {
		slog.Error(msg, "err", err)
	} else {
		slog.Error(msg)
	}
	os.Exit(1)
}
