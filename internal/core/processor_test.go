package core_test

import (
	"context"
	"encoding/json"
	"fmt"
	"ml-backend/internal/core"
	"ml-backend/internal/database"
	"ml-backend/internal/messaging"
	"ml-backend/internal/metrics"
	"ml-backend/internal/state"
	"ml-backend/pkg/api"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := database.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	return db
}

type recordingTask struct {
	queue   string
	payload []byte

	acked, nacked, rejected bool
}

func (t *recordingTask) Type() string    { return t.queue }
func (t *recordingTask) Payload() []byte { return t.payload }
func (t *recordingTask) Ack() error      { t.acked = true; return nil }
func (t *recordingTask) Nack() error     { t.nacked = true; return nil }
func (t *recordingTask) Reject() error   { t.rejected = true; return nil }

func queueEvent(t *testing.T, db *gorm.DB, projectId int, action api.EventAction) *recordingTask {
	id := uuid.New()
	data := json.RawMessage(fmt.Sprintf(`{"action":%q,"project":{"id":%d}}`, action, projectId))

	require.NoError(t, db.Create(&database.EventTask{
		Id:           id,
		ProjectId:    projectId,
		Action:       string(action),
		Payload:      datatypes.JSON(data),
		Status:       database.JobQueued,
		CreationTime: time.Now(),
	}).Error)

	payload, err := json.Marshal(messaging.FitEventPayload{TaskId: id, ProjectId: projectId, Action: action, Data: data})
	require.NoError(t, err)

	return &recordingTask{queue: messaging.FitEventQueue, payload: payload}
}

func eventTaskStatus(t *testing.T, db *gorm.DB, task *recordingTask) string {
	var payload messaging.FitEventPayload
	require.NoError(t, json.Unmarshal(task.payload, &payload))

	var row database.EventTask
	require.NoError(t, db.First(&row, "id = ?", payload.TaskId).Error)
	return row.Status
}

func TestEventProcessorCompletesFitEvents(t *testing.T) {
	db := createDB(t)
	loader := &countingLoader{}
	manager, err := core.NewModelManager(core.Dummy, loader.loaders(), state.NewMemoryStore())
	require.NoError(t, err)

	m := metrics.New()
	proc := core.NewEventProcessor(db, manager, messaging.NewInMemoryQueue(), m)

	created := queueEvent(t, db, 4, api.AnnotationCreated)
	proc.ProcessTask(created)
	updated := queueEvent(t, db, 4, api.AnnotationUpdated)
	proc.ProcessTask(updated)

	assert.True(t, created.acked)
	assert.True(t, updated.acked)
	assert.Equal(t, database.JobCompleted, eventTaskStatus(t, db, created))
	assert.Equal(t, database.JobCompleted, eventTaskStatus(t, db, updated))
	assert.Equal(t, int32(2), loader.fits.Load())
	assert.Equal(t, int32(1), loader.setups.Load())
	series, err := testutil.GatherAndCount(m.Registry(), "ml_backend_fit_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestEventProcessorFitFailure(t *testing.T) {
	db := createDB(t)
	loader := &countingLoader{failFit: true}
	manager, err := core.NewModelManager(core.Dummy, loader.loaders(), state.NewMemoryStore())
	require.NoError(t, err)

	proc := core.NewEventProcessor(db, manager, messaging.NewInMemoryQueue(), nil)

	task := queueEvent(t, db, 1, api.AnnotationDeleted)
	proc.ProcessTask(task)

	assert.True(t, task.nacked)
	assert.False(t, task.acked)
	assert.Equal(t, database.JobFailed, eventTaskStatus(t, db, task))
}

func TestEventProcessorRejectsBadTasks(t *testing.T) {
	db := createDB(t)
	manager, err := core.NewModelManager(core.Dummy, core.NewModelLoaders(), state.NewMemoryStore())
	require.NoError(t, err)

	proc := core.NewEventProcessor(db, manager, messaging.NewInMemoryQueue(), nil)

	malformed := &recordingTask{queue: messaging.FitEventQueue, payload: []byte("not json")}
	proc.ProcessTask(malformed)
	assert.True(t, malformed.rejected)

	unknown := &recordingTask{queue: "other_queue", payload: []byte("{}")}
	proc.ProcessTask(unknown)
	assert.True(t, unknown.rejected)
}

func TestEventProcessorLabelsUnhandledActions(t *testing.T) {
	db := createDB(t)
	manager, err := core.NewModelManager(core.Dummy, core.NewModelLoaders(), state.NewMemoryStore())
	require.NoError(t, err)

	m := metrics.New()
	proc := core.NewEventProcessor(db, manager, messaging.NewInMemoryQueue(), m)

	for i := 0; i < 5; i++ {
		task := queueEvent(t, db, 2, api.EventAction(fmt.Sprintf("CUSTOM_%d", i)))
		proc.ProcessTask(task)
		assert.True(t, task.acked)
	}

	count, err := testutil.GatherAndCount(m.Registry(), "ml_backend_fit_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventProcessorStartStop(t *testing.T) {
	db := createDB(t)
	manager, err := core.NewModelManager(core.Dummy, core.NewModelLoaders(), state.NewMemoryStore())
	require.NoError(t, err)

	queue := messaging.NewInMemoryQueue()
	proc := core.NewEventProcessor(db, manager, queue, nil)

	done := make(chan struct{})
	go func() {
		proc.Start()
		close(done)
	}()

	task := queueEvent(t, db, 2, api.AnnotationCreated)
	var payload messaging.FitEventPayload
	require.NoError(t, json.Unmarshal(task.payload, &payload))
	require.NoError(t, queue.PublishFitEvent(context.Background(), payload))

	assert.Eventually(t, func() bool {
		var row database.EventTask
		if err := db.First(&row, "id = ?", payload.TaskId).Error; err != nil {
			return false
		}
		return row.Status == database.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	proc.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event processor did not stop")
	}
}
