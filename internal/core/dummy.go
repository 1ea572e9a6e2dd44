package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"ml-backend/pkg/api"
)

const dummyModelName = "DummyModel"

// DummyModel is a placeholder model: every task gets an empty result with a
// score of 1.0, and lifecycle events are ignored.
type DummyModel struct {
	version string
}

func NewDummyModel() *DummyModel {
	return &DummyModel{}
}

func (m *DummyModel) Name() string {
	return dummyModelName
}

func (m *DummyModel) Setup(ctx context.Context) error {
	m.version = fmt.Sprintf("%s-v0.0.1", m.Name())
	return nil
}

func (m *DummyModel) Predict(ctx context.Context, tasks []api.Task, predictCtx map[string]any, params map[string]any) ([]api.Prediction, error) {
	predictions := make([]api.Prediction, 0, len(tasks))
	for range tasks {
		predictions = append(predictions, api.Prediction{
			Result:       []json.RawMessage{},
			Score:        1.0,
			ModelVersion: m.version,
		})
	}
	return predictions, nil
}

func (m *DummyModel) Fit(ctx context.Context, event api.EventAction, data json.RawMessage, params map[string]any) error {
	slog.Debug("fit called", "model", m.Name(), "event", event)
	return nil
}

func (m *DummyModel) ModelVersion() string {
	return m.version
}
