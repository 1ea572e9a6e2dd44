package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateEventTaskStatus(ctx context.Context, txn *gorm.DB, taskId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == JobCompleted || status == JobFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&EventTask{Id: taskId}).Updates(updates).Error; err != nil {
		slog.Error("error updating event task status", "task_id", taskId, "status", status, "error", err)
		return err
	}
	return nil
}

func QueuedEventTasks(ctx context.Context, txn *gorm.DB) ([]EventTask, error) {
	var tasks []EventTask
	if err := txn.WithContext(ctx).Where("status = ?", JobQueued).Order("creation_time").Find(&tasks).Error; err != nil {
		slog.Error("error listing queued event tasks", "error", err)
		return nil, err
	}
	return tasks, nil
}
