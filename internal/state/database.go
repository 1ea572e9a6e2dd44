package state

import (
	"context"
	"errors"
	"fmt"
	"ml-backend/internal/database"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DatabaseStore struct {
	db *gorm.DB
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) Get(ctx context.Context, projectId int, key string) (string, error) {
	var row database.ProjectState
	err := s.db.WithContext(ctx).Where("project_id = ? AND name = ?", projectId, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error reading state %q for project %d: %w", key, projectId, err)
	}
	return row.Value, nil
}

func (s *DatabaseStore) Set(ctx context.Context, projectId int, key, value string) error {
	row := database.ProjectState{ProjectId: projectId, Name: key, Value: value, UpdateTime: time.Now().UTC()}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "update_time"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("error writing state %q for project %d: %w", key, projectId, err)
	}
	return nil
}
