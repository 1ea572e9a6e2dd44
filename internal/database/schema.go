package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobQueued    string = "QUEUED"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

// ProjectState holds the serving layer's key/value state for an annotation
// project, e.g. the model version and label config recorded at setup.
type ProjectState struct {
	ProjectId  int    `gorm:"primaryKey;autoIncrement:false"`
	Name       string `gorm:"primaryKey;size:64"`
	Value      string `gorm:"not null"`
	UpdateTime time.Time
}

type EventTask struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId int       `gorm:"index;not null"`
	Action    string    `gorm:"size:32;not null"`
	Payload   datatypes.JSON

	Status         string `gorm:"size:20;not null"`
	CreationTime   time.Time
	CompletionTime sql.NullTime
}
