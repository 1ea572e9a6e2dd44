package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"ml-backend/internal/config"
	"ml-backend/internal/database"
	"ml-backend/internal/messaging"
	"ml-backend/internal/state"
	"ml-backend/pkg/api"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func ConfigureLogging(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func CreateStateStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (state.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StateBackend {
	case config.StateMemory:
		slog.Warn("using in-memory state store, project state will be lost on restart")
		return state.NewMemoryStore(), noop, nil
	case config.StateDatabase:
		return state.NewDatabaseStore(db), noop, nil
	case config.StateRedis:
		store, err := state.NewRedisStoreFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid state backend '%s'", cfg.StateBackend)
	}
}

// CreateQueue connects to RabbitMQ if configured. Otherwise it returns an
// in-memory queue, re-publishing any events still queued in the database from
// a previous run.
func CreateQueue(ctx context.Context, rabbitMQURL string, db *gorm.DB) (messaging.Publisher, messaging.Receiver, error) {
	if rabbitMQURL != "" {
		publisher, err := messaging.NewRabbitMQPublisher(rabbitMQURL)
		if err != nil {
			return nil, nil, err
		}
		receiver, err := messaging.NewRabbitMQReceiver(rabbitMQURL)
		if err != nil {
			publisher.Close()
			return nil, nil, err
		}
		return publisher, receiver, nil
	}

	queue := messaging.NewInMemoryQueue()

	tasks, err := database.QueuedEventTasks(ctx, db)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading queued event tasks: %w", err)
	}

	// Publish in the background: the backlog may exceed the queue's buffer and
	// only drains once the event processor is running.
	go func() {
		for _, task := range tasks {
			payload := messaging.FitEventPayload{
				TaskId:    task.Id,
				ProjectId: task.ProjectId,
				Action:    api.EventAction(task.Action),
				Data:      []byte(task.Payload),
			}
			if err := queue.PublishFitEvent(ctx, payload); err != nil {
				slog.Error("error re-publishing queued event", "task_id", task.Id, "error", err)
				return
			}
		}
		if len(tasks) > 0 {
			slog.Info("re-published queued events", "count", len(tasks))
		}
	}()

	return queue, queue, nil
}
