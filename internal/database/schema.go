package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	JobQueued    string = "QUEUED"
	JobRunning   string = "RUNNING"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

type SegmentationJob struct {
	Id      uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobName string    `gorm:"not null"`

	Status         string `gorm:"size:20;not null"`
	CreationTime   time.Time
	StartTime      sql.NullTime
	CompletionTime sql.NullTime

	ClassificationPath string `gorm:"not null"`
	ImageDir           string `gorm:"not null"`

	Threshold    float64 `gorm:"not null"`
	MinArea      int     `gorm:"not null"`
	BatchSize    int     `gorm:"not null"`
	UseTTA       bool    `gorm:"default:true"`
	SaveProbMaps bool    `gorm:"default:false"`

	PositiveCount  int `gorm:"default:0"`
	SubmissionPath sql.NullString
	ProbMapPath    sql.NullString
	ErrorMessage   sql.NullString
}
