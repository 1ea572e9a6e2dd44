package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"ml-backend/internal/core"
	"ml-backend/internal/database"
	"ml-backend/internal/messaging"
	"ml-backend/internal/metrics"
	"ml-backend/pkg/api"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const basicAuthRealm = "ml-backend"

type BackendService struct {
	db        *gorm.DB
	models    *core.ModelManager
	publisher messaging.Publisher
	metrics   *metrics.Metrics

	basicAuth map[string]string
}

type Option func(*BackendService)

// WithBasicAuth protects every route except the health checks with HTTP
// basic auth.
func WithBasicAuth(user, password string) Option {
	return func(s *BackendService) {
		s.basicAuth = map[string]string{user: password}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BackendService) {
		s.metrics = m
	}
}

func NewBackendService(db *gorm.DB, models *core.ModelManager, publisher messaging.Publisher, opts ...Option) *BackendService {
	s := &BackendService{db: db, models: models, publisher: publisher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/", RestHandler(s.Health))
	r.Get("/health", RestHandler(s.Health))

	r.Group(func(r chi.Router) {
		if s.basicAuth != nil {
			r.Use(middleware.BasicAuth(basicAuthRealm, s.basicAuth))
		}

		r.Post("/setup", RestHandler(s.Setup))
		r.Post("/predict", RestHandler(s.Predict))
		r.Post("/webhook", RestHandler(s.Webhook))
		r.Get("/versions", RestHandler(s.Versions))
		r.Handle("/metrics", s.metrics.Handler())
	})
}

func (s *BackendService) Health(r *http.Request) (any, error) {
	return api.HealthResponse{Status: "UP", ModelClass: s.models.ModelClass()}, nil
}

func (s *BackendService) Setup(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SetupRequest](r)
	if err != nil {
		return nil, err
	}

	projectId, err := parseProjectKey(req.Project)
	if err != nil {
		return nil, err
	}

	model, err := s.models.Setup(r.Context(), projectId, req.Schema)
	if err != nil {
		slog.Error("error setting up model", "project_id", projectId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error setting up model")
	}

	slog.Info("model setup", "project_id", projectId, "model_version", model.ModelVersion(), "requested_version", req.ModelVersion)

	return api.SetupResponse{ModelVersion: model.ModelVersion()}, nil
}

func (s *BackendService) Predict(r *http.Request) (any, error) {
	req, err := ParseRequest[api.PredictRequest](r)
	if err != nil {
		return nil, err
	}

	projectId, err := parseProjectKey(req.Project)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	model, err := s.models.Get(ctx, projectId)
	if err != nil {
		slog.Error("error getting model", "project_id", projectId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading model")
	}

	var predictCtx map[string]any
	if c, ok := req.Params["context"].(map[string]any); ok {
		predictCtx = c
	}

	predictions, err := model.Predict(ctx, req.Tasks, predictCtx, req.Params)
	if err != nil {
		slog.Error("error running prediction", "project_id", projectId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error running prediction")
	}

	s.metrics.ObservePredictions(len(predictions))
	slog.Debug("predicted tasks", "project_id", projectId, "tasks", len(req.Tasks))

	return api.PredictResponse{Results: predictions, ModelVersion: model.ModelVersion()}, nil
}

func (s *BackendService) Webhook(r *http.Request) (any, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("error reading webhook body", "error", err)
		return nil, CodedErrorf(http.StatusBadRequest, "unable to read request body")
	}

	var req api.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		slog.Error("error parsing webhook body", "error", err)
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}

	if !req.Action.Known() {
		slog.Info("ignoring unknown webhook event", "action", req.Action)
		s.metrics.ObserveEvent(metrics.UnknownAction, metrics.EventIgnored)
		return api.WebhookResponse{Status: "Unknown event"}, nil
	}

	ctx := r.Context()

	if err := s.models.RecordLabelConfig(ctx, req.Project.Id, req.Project.LabelConfig); err != nil {
		slog.Error("error recording label config", "project_id", req.Project.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error recording label config")
	}

	task := database.EventTask{
		Id:           uuid.New(),
		ProjectId:    req.Project.Id,
		Action:       string(req.Action),
		Payload:      datatypes.JSON(body),
		Status:       database.JobQueued,
		CreationTime: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		slog.Error("error creating event task", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create event task entry")
	}

	payload := messaging.FitEventPayload{
		TaskId:    task.Id,
		ProjectId: task.ProjectId,
		Action:    req.Action,
		Data:      body,
	}

	if err := s.publisher.PublishFitEvent(ctx, payload); err != nil {
		slog.Error("error publishing fit event", "task_id", task.Id, "error", err)
		if err := database.UpdateEventTaskStatus(ctx, s.db, task.Id, database.JobFailed); err != nil {
			slog.Error("error marking event task failed", "task_id", task.Id, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue fit event")
	}

	s.metrics.ObserveEvent(string(req.Action), metrics.EventReceived)
	slog.Debug("queued fit event", "task_id", task.Id, "project_id", task.ProjectId, "action", req.Action)

	return WithStatus(http.StatusCreated, api.WebhookResponse{Status: "queued", Job: &task.Id}), nil
}

func (s *BackendService) Versions(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.VersionsRequest](r)
	if err != nil {
		return nil, err
	}

	projectId, err := parseProjectKey(params.Project)
	if err != nil {
		return nil, err
	}

	versions, err := s.models.Versions(r.Context(), projectId)
	if err != nil {
		slog.Error("error listing model versions", "project_id", projectId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing model versions")
	}

	return api.VersionsResponse{Versions: versions}, nil
}
