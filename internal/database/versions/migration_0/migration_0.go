package migration_0

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

func Migration(db *gorm.DB) error {
	return db.AutoMigrate(&ProjectState{}, &EventTask{})
}

func Rollback(db *gorm.DB) error {
	return db.Migrator().DropTable(&EventTask{}, &ProjectState{})
}
