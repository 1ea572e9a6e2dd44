package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"ml-backend/internal/database"
	"ml-backend/internal/messaging"
	"ml-backend/internal/metrics"

	"gorm.io/gorm"
)

// EventProcessor delivers queued annotation lifecycle events to the Fit hook
// of the project's model.
type EventProcessor struct {
	db       *gorm.DB
	models   *ModelManager
	receiver messaging.Receiver
	metrics  *metrics.Metrics
}

func NewEventProcessor(db *gorm.DB, models *ModelManager, receiver messaging.Receiver, metrics *metrics.Metrics) *EventProcessor {
	return &EventProcessor{
		db:       db,
		models:   models,
		receiver: receiver,
		metrics:  metrics,
	}
}

// Start blocks until the receiver's task channel is closed.
func (proc *EventProcessor) Start() {
	slog.Info("starting event processor")

	for task := range proc.receiver.Tasks() {
		proc.ProcessTask(task)
	}

	slog.Info("event processor stopped")
}

func (proc *EventProcessor) Stop() {
	slog.Info("stopping event processor")

	proc.receiver.Close()
}

func (proc *EventProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {
	case messaging.FitEventQueue:
		var payload messaging.FitEventPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling fit event", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processFitEvent(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Debug("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *EventProcessor) processFitEvent(ctx context.Context, payload messaging.FitEventPayload) error {
	fitErr := proc.fit(ctx, payload)

	status, outcome := database.JobCompleted, metrics.EventCompleted
	if fitErr != nil {
		status, outcome = database.JobFailed, metrics.EventFailed
	}
	action := string(payload.Action)
	if !payload.Action.Known() {
		action = metrics.UnknownAction
	}
	proc.metrics.ObserveEvent(action, outcome)

	if err := database.UpdateEventTaskStatus(ctx, proc.db, payload.TaskId, status); err != nil {
		if fitErr != nil {
			return fitErr
		}
		return fmt.Errorf("error updating event task status: %w", err)
	}

	return fitErr
}

func (proc *EventProcessor) fit(ctx context.Context, payload messaging.FitEventPayload) error {
	model, err := proc.models.Get(ctx, payload.ProjectId)
	if err != nil {
		return fmt.Errorf("error getting model for project %d: %w", payload.ProjectId, err)
	}

	if err := model.Fit(ctx, payload.Action, payload.Data, nil); err != nil {
		return fmt.Errorf("fit failed for event %s: %w", payload.Action, err)
	}

	return nil
}
