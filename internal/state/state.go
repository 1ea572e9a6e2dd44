// Package state stores the serving layer's per-project key/value state, such as
// the model version recorded when a project's model is set up.
package state

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("state key not found")

const (
	KeyModelVersion = "model_version"
	KeyModelType    = "model_type"
	KeyLabelConfig  = "label_config"
)

type Store interface {
	// Get returns ErrNotFound if the key has never been set for the project.
	Get(ctx context.Context, projectId int, key string) (string, error)

	Set(ctx context.Context, projectId int, key, value string) error
}
