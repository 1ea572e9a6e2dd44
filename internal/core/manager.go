package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"ml-backend/internal/state"
	"sync"
)

type projectModel struct {
	once  sync.Once
	model Model
	err   error
}

// ModelManager holds one configured model per annotation project. Models are
// created and set up lazily on first use.
type ModelManager struct {
	modelType  ModelType
	modelClass string
	loader     ModelLoader
	store      state.Store

	mu     sync.Mutex
	models map[int]*projectModel
}

func NewModelManager(modelType ModelType, loaders map[ModelType]ModelLoader, store state.Store) (*ModelManager, error) {
	loader, ok := loaders[modelType]
	if !ok {
		return nil, fmt.Errorf("unknown model type '%s'", modelType)
	}

	model, err := loader()
	if err != nil {
		return nil, fmt.Errorf("error loading model: %w", err)
	}

	return &ModelManager{
		modelType:  modelType,
		modelClass: model.Name(),
		loader:     loader,
		store:      store,
		models:     make(map[int]*projectModel),
	}, nil
}

// ModelClass returns the name of the model implementation being served.
func (m *ModelManager) ModelClass() string {
	return m.modelClass
}

func (m *ModelManager) Get(ctx context.Context, projectId int) (Model, error) {
	m.mu.Lock()
	entry, ok := m.models[projectId]
	if !ok {
		entry = &projectModel{}
		m.models[projectId] = entry
	}
	m.mu.Unlock()

	entry.once.Do(func() {
		entry.model, entry.err = m.load(ctx, projectId)
	})

	if entry.err != nil {
		// Drop the failed entry so the next call retries.
		m.mu.Lock()
		if m.models[projectId] == entry {
			delete(m.models, projectId)
		}
		m.mu.Unlock()
		return nil, entry.err
	}

	return entry.model, nil
}

func (m *ModelManager) load(ctx context.Context, projectId int) (Model, error) {
	model, err := m.loader()
	if err != nil {
		slog.Error("error loading model", "project_id", projectId, "model_type", m.modelType, "error", err)
		return nil, fmt.Errorf("error loading model: %w", err)
	}

	if err := model.Setup(ctx); err != nil {
		slog.Error("error setting up model", "project_id", projectId, "model_type", m.modelType, "error", err)
		return nil, fmt.Errorf("error setting up model: %w", err)
	}

	if err := m.store.Set(ctx, projectId, state.KeyModelType, string(m.modelType)); err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, projectId, state.KeyModelVersion, model.ModelVersion()); err != nil {
		return nil, err
	}

	slog.Info("model ready", "project_id", projectId, "model", model.Name(), "model_version", model.ModelVersion())

	return model, nil
}

// Setup returns the project's model, creating it if needed, and records the
// label config sent by the host.
func (m *ModelManager) Setup(ctx context.Context, projectId int, labelConfig string) (Model, error) {
	model, err := m.Get(ctx, projectId)
	if err != nil {
		return nil, err
	}

	if err := m.RecordLabelConfig(ctx, projectId, labelConfig); err != nil {
		return nil, err
	}

	return model, nil
}

// RecordLabelConfig stores the project's labelling config. An empty config
// leaves the stored one untouched.
func (m *ModelManager) RecordLabelConfig(ctx context.Context, projectId int, labelConfig string) error {
	if labelConfig == "" {
		return nil
	}
	return m.store.Set(ctx, projectId, state.KeyLabelConfig, labelConfig)
}

// Versions lists the model versions recorded for a project. A project that
// has never been set up has no versions.
func (m *ModelManager) Versions(ctx context.Context, projectId int) ([]string, error) {
	version, err := m.store.Get(ctx, projectId, state.KeyModelVersion)
	if errors.Is(err, state.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []string{version}, nil
}
