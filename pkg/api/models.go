// Package api defines the wire types shared by the backend service and its
// clients.
package api

import (
	"time"

	"github.com/google/uuid"
)

type SubmitJobRequest struct {
	JobName string `json:"job_name"`

	// ClassificationPath points at the stage-1 classification CSV; ImageDir
	// holds the candidate images whose filename stems are image ids.
	ClassificationPath string `json:"classification_path"`
	ImageDir           string `json:"image_dir"`

	// Optional overrides; zero values fall back to service defaults.
	Threshold    *float64 `json:"threshold,omitempty"`
	MinArea      *int     `json:"min_area,omitempty"`
	BatchSize    *int     `json:"batch_size,omitempty"`
	UseTTA       *bool    `json:"use_tta,omitempty"`
	SaveProbMaps bool     `json:"save_prob_maps,omitempty"`
}

type SubmitJobResponse struct {
	Message string    `json:"message"`
	JobId   uuid.UUID `json:"job_id"`
}

type Job struct {
	Id      uuid.UUID `json:"id"`
	JobName string    `json:"job_name"`
	Status  string    `json:"status"`

	CreationTime   time.Time  `json:"creation_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`

	Threshold float64 `json:"threshold"`
	MinArea   int     `json:"min_area"`
	UseTTA    bool    `json:"use_tta"`

	PositiveCount  int    `json:"positive_count"`
	SubmissionPath string `json:"submission_path,omitempty"`
	ProbMapPath    string `json:"prob_map_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

type ListJobsQuery struct {
	Status string `schema:"status"`
}
