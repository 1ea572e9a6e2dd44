package core

import (
	"context"
	"encoding/json"
	"ml-backend/pkg/api"
)

// ModelType selects the model implementation served by the backend.
type ModelType string

const (
	Dummy ModelType = "dummy"
)

// Model is the capability the annotation host drives. Setup is called exactly
// once before any other method; Predict and Fit may then be called
// concurrently.
type Model interface {
	// Name identifies the implementation, e.g. in health checks.
	Name() string

	Setup(ctx context.Context) error

	// Predict returns one prediction per task, in task order.
	Predict(ctx context.Context, tasks []api.Task, predictCtx map[string]any, params map[string]any) ([]api.Prediction, error)

	// Fit receives annotation lifecycle events. data is the raw event body.
	Fit(ctx context.Context, event api.EventAction, data json.RawMessage, params map[string]any) error

	ModelVersion() string
}

type ModelLoader func() (Model, error)

func NewModelLoaders() map[ModelType]ModelLoader {
	return map[ModelType]ModelLoader{
		Dummy: func() (Model, error) {
			return NewDummyModel(), nil
		},
	}
}
