package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"ml-backend/pkg/api"
	"time"

	"github.com/google/uuid"
)

const (
	FitEventQueue   = "fit_event_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

var ErrQueueClosed = errors.New("queue is closed")

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// FitEventPayload carries an annotation lifecycle event from the webhook to
// the model's Fit hook. Data is the raw webhook body.
type FitEventPayload struct {
	TaskId    uuid.UUID
	ProjectId int
	Action    api.EventAction
	Data      json.RawMessage
}

type Publisher interface {
	PublishFitEvent(ctx context.Context, payload FitEventPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
