package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pneumo-backend/internal/database"
	"pneumo-backend/internal/messaging"
	"pneumo-backend/internal/submission"

	"gorm.io/gorm"
)

// TaskProcessor consumes segmentation tasks from the queue and drives the
// stage-2 pipeline, recording progress on the job row. Failures are terminal
// for the job; the queue is never asked to redeliver.
type TaskProcessor struct {
	db       *gorm.DB
	reciever messaging.Reciever

	models      []Segmenter
	imageSize   int
	channels    int
	artifactDir string
}

func NewTaskProcessor(db *gorm.DB, reciever messaging.Reciever, models []Segmenter, imageSize, channels int, artifactDir string) *TaskProcessor {
	return &TaskProcessor{
		db:          db,
		reciever:    reciever,
		models:      models,
		imageSize:   imageSize,
		channels:    channels,
		artifactDir: artifactDir,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	switch task.Type() {
	case messaging.SegmentQueue:
		var payload messaging.SegmentTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling segmentation task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		if err := proc.processSegmentTask(ctx, payload); err != nil {
			slog.Error("segmentation task failed", "job_id", payload.JobId, "error", err)
		}
	default:
		slog.Error("unknown task type received", "type", task.Type())
	}

	// No retries: segmentation is deterministic, so a failure is a
	// configuration error to fix and rerun, not a transient condition.
	if err := task.Ack(); err != nil {
		slog.Error("error acking message from queue", "error", err)
	}
}

func (proc *TaskProcessor) processSegmentTask(ctx context.Context, payload messaging.SegmentTaskPayload) error {
	var job database.SegmentationJob
	if err := proc.db.WithContext(ctx).First(&job, "id = ?", payload.JobId).Error; err != nil {
		return fmt.Errorf("loading job %s: %w", payload.JobId, err)
	}

	updates := map[string]any{
		"status":     database.JobRunning,
		"start_time": sql.NullTime{Time: time.Now(), Valid: true},
	}
	if err := proc.db.WithContext(ctx).Model(&job).Updates(updates).Error; err != nil {
		return fmt.Errorf("marking job running: %w", err)
	}

	if err := proc.runJob(ctx, &job); err != nil {
		proc.db.WithContext(ctx).Model(&job).Updates(map[string]any{
			"status":          database.JobFailed,
			"completion_time": sql.NullTime{Time: time.Now(), Valid: true},
			"error_message":   sql.NullString{String: err.Error(), Valid: true},
		})
		return err
	}
	return nil
}

func (proc *TaskProcessor) runJob(ctx context.Context, job *database.SegmentationJob) error {
	table, err := submission.Load(job.ClassificationPath)
	if err != nil {
		return err
	}

	imagePaths, err := ListImageFiles(job.ImageDir)
	if err != nil {
		return err
	}

	cfg := StageTwoConfig{
		ImageSize:      proc.imageSize,
		Channels:       proc.channels,
		BatchSize:      job.BatchSize,
		UseTTA:         job.UseTTA,
		Threshold:      float32(job.Threshold),
		MinArea:        job.MinArea,
		SubmissionPath: filepath.Join(proc.artifactDir, fmt.Sprintf("submission_%s.csv", job.Id)),
	}
	if job.SaveProbMaps {
		cfg.ProbMapPath = filepath.Join(proc.artifactDir, fmt.Sprintf("probability_masks_%s.npy", job.Id))
	}

	positives := len(table.PendingIds())

	stage := NewStageTwo(proc.models, nil, nil, cfg)
	if err := stage.Run(table, imagePaths); err != nil {
		return err
	}

	updates := map[string]any{
		"status":          database.JobCompleted,
		"completion_time": sql.NullTime{Time: time.Now(), Valid: true},
		"positive_count":  positives,
		"submission_path": sql.NullString{String: cfg.SubmissionPath, Valid: true},
	}
	if cfg.ProbMapPath != "" {
		updates["prob_map_path"] = sql.NullString{String: cfg.ProbMapPath, Valid: true}
	}
	if err := proc.db.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
		return fmt.Errorf("marking job completed: %w", err)
	}

	slog.Info("segmentation job completed", "job_id", job.Id, "positives", positives)
	return nil
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing image dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := imageExtensions[ext]; ok {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
