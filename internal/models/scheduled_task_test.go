package models

import (
	"testing"
	"time"
)

func TestScheduledTaskNextDue(t *testing.T) {
	due := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	daily := "FREQ=DAILY"
	broken := "FREQ=SOMETIMES"

	tests := []struct {
		name  string
		task  ScheduledTask
		after time.Time
		want  time.Time
	}{
		{
			name:  "one time keeps due",
			task:  ScheduledTask{Due: due, TaskType: ScheduledTaskTypeOneTime},
			after: due.Add(48 * time.Hour),
			want:  due,
		},
		{
			name:  "daily advances past now",
			task:  ScheduledTask{Due: due, TaskType: ScheduledTaskTypeRecurring, RecurringInterval: &daily},
			after: due.Add(30 * time.Hour),
			want:  due.Add(48 * time.Hour),
		},
		{
			name:  "occurrence equal to after is skipped",
			task:  ScheduledTask{Due: due, TaskType: ScheduledTaskTypeRecurring, RecurringInterval: &daily},
			after: due,
			want:  due.Add(24 * time.Hour),
		},
		{
			name:  "invalid rule falls back to due",
			task:  ScheduledTask{Due: due, TaskType: ScheduledTaskTypeRecurring, RecurringInterval: &broken},
			after: due.Add(time.Hour),
			want:  due,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.NextDue(tt.after); !got.Equal(tt.want) {
				t.Errorf("NextDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildScheduledTask(t *testing.T) {
	type args struct {
		AnnouncementID uint   `json:"announcement_id"`
		UserIDs        []uint `json:"user_ids"`
	}
	due := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	task, err := BuildScheduledTask(TaskSendAnnouncement, args{AnnouncementID: 4, UserIDs: []uint{1, 2}}, due, nil, ScheduledTaskTypeOneTime, 3)
	if err != nil {
		t.Fatalf("BuildScheduledTask: %v", err)
	}
	if task.Status != ScheduledTaskStatusActive || task.MaxAttempt != 3 {
		t.Errorf("unexpected task %+v", task)
	}
	if got, ok := task.Arguments["announcement_id"].(float64); !ok || got != 4 {
		t.Errorf("announcement_id = %v", task.Arguments["announcement_id"])
	}
	if ids, ok := task.Arguments["user_ids"].([]interface{}); !ok || len(ids) != 2 {
		t.Errorf("user_ids = %v", task.Arguments["user_ids"])
	}
}
