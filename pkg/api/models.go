package api

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Task is one unit of input submitted by the annotation host. Its contents are
// owned by the host and are passed through to the model untouched.
type Task map[string]any

type Prediction struct {
	Result       []json.RawMessage `json:"result"`
	Score        float64           `json:"score"`
	ModelVersion string            `json:"model_version"`
}

type EventAction string

const (
	AnnotationCreated EventAction = "ANNOTATION_CREATED"
	AnnotationUpdated EventAction = "ANNOTATION_UPDATED"
	AnnotationDeleted EventAction = "ANNOTATION_DELETED"
	StartTraining     EventAction = "START_TRAINING"
)

// Known reports whether the host forwards this action to the model.
func (a EventAction) Known() bool {
	switch a {
	case AnnotationCreated, AnnotationUpdated, AnnotationDeleted, StartTraining:
		return true
	}
	return false
}

type HealthResponse struct {
	Status     string `json:"status"`
	ModelClass string `json:"model_class"`
}

type SetupRequest struct {
	Project      string         `json:"project"`
	Schema       string         `json:"schema"`
	Hostname     string         `json:"hostname"`
	AccessToken  string         `json:"access_token"`
	ModelVersion string         `json:"model_version"`
	ExtraParams  map[string]any `json:"extra_params"`
}

type SetupResponse struct {
	ModelVersion string `json:"model_version"`
}

type PredictRequest struct {
	Tasks       []Task         `json:"tasks"`
	Project     string         `json:"project"`
	LabelConfig string         `json:"label_config"`
	Params      map[string]any `json:"params"`
}

type PredictResponse struct {
	Results      []Prediction `json:"results"`
	ModelVersion string       `json:"model_version"`
}

type WebhookProject struct {
	Id          int    `json:"id"`
	LabelConfig string `json:"label_config,omitempty"`
}

type WebhookRequest struct {
	Action  EventAction    `json:"action"`
	Project WebhookProject `json:"project"`
}

type WebhookResponse struct {
	Status string     `json:"status"`
	Job    *uuid.UUID `json:"job,omitempty"`
}

type VersionsRequest struct {
	Project string `schema:"project"`
}

type VersionsResponse struct {
	Versions []string `json:"versions"`
	ModelDir string   `json:"model_dir"`
}
