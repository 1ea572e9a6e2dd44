package messaging_test

import (
	"context"
	"encoding/json"
	"ml-backend/internal/messaging"
	"ml-backend/pkg/api"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueuePublishAndReceive(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	payload := messaging.FitEventPayload{
		TaskId:    uuid.New(),
		ProjectId: 7,
		Action:    api.AnnotationCreated,
		Data:      json.RawMessage(`{"action":"ANNOTATION_CREATED","project":{"id":7}}`),
	}
	require.NoError(t, queue.PublishFitEvent(context.Background(), payload))

	select {
	case task := <-queue.Tasks():
		assert.Equal(t, messaging.FitEventQueue, task.Type())

		var received messaging.FitEventPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, payload.TaskId, received.TaskId)
		assert.Equal(t, payload.ProjectId, received.ProjectId)
		assert.Equal(t, payload.Action, received.Action)
		assert.JSONEq(t, string(payload.Data), string(received.Data))

		assert.NoError(t, task.Ack())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task")
	}
}

func TestInMemoryQueuePublishAfterClose(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	queue.Close()
	queue.Close()

	err := queue.PublishFitEvent(context.Background(), messaging.FitEventPayload{TaskId: uuid.New()})
	assert.ErrorIs(t, err, messaging.ErrQueueClosed)

	_, ok := <-queue.Tasks()
	assert.False(t, ok)
}

func TestInMemoryQueuePublishRespectsContext(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, queue.PublishFitEvent(context.Background(), messaging.FitEventPayload{TaskId: uuid.New()}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := queue.PublishFitEvent(ctx, messaging.FitEventPayload{TaskId: uuid.New()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
