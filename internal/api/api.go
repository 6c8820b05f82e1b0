package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pneumo-backend/internal/database"
	"pneumo-backend/internal/messaging"
	"pneumo-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service defaults for parameters a submission omits. The area floor matches
// the smallest pneumothorax region the reference pipeline keeps.
const (
	DefaultThreshold = 0.5
	DefaultMinArea   = 3500
	DefaultBatchSize = 32
)

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
}

func NewBackendService(db *gorm.DB, publisher messaging.Publisher) *BackendService {
	return &BackendService{db: db, publisher: publisher}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", RestHandler(s.SubmitSegmentationJob))
		r.Get("/", RestHandler(s.ListJobs))
		r.Get("/{job_id}", RestHandler(s.GetJob))
		r.Get("/{job_id}/submission", s.DownloadSubmission)
	})
}

func (s *BackendService) SubmitSegmentationJob(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SubmitJobRequest](r)
	if err != nil {
		return nil, err
	}

	if err := validateName(req.JobName); err != nil {
		return nil, err
	}
	if req.ClassificationPath == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "classification_path is required")
	}
	if req.ImageDir == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "image_dir is required")
	}

	threshold := DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, CodedErrorf(http.StatusBadRequest, "threshold must be in [0, 1]")
	}
	minArea := DefaultMinArea
	if req.MinArea != nil {
		minArea = *req.MinArea
	}
	if minArea <= 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "min_area must be positive")
	}
	batchSize := DefaultBatchSize
	if req.BatchSize != nil {
		batchSize = *req.BatchSize
	}
	if batchSize <= 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "batch_size must be positive")
	}
	useTTA := true
	if req.UseTTA != nil {
		useTTA = *req.UseTTA
	}

	ctx := r.Context()

	job := &database.SegmentationJob{
		Id:                 uuid.New(),
		JobName:            req.JobName,
		Status:             database.JobQueued,
		CreationTime:       time.Now(),
		ClassificationPath: req.ClassificationPath,
		ImageDir:           req.ImageDir,
		Threshold:          threshold,
		MinArea:            minArea,
		BatchSize:          batchSize,
		UseTTA:             useTTA,
		SaveProbMaps:       req.SaveProbMaps,
	}

	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		slog.Error("error creating segmentation job", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create job entry")
	}

	if err := s.publisher.PublishSegmentTask(ctx, messaging.SegmentTaskPayload{JobId: job.Id}); err != nil {
		slog.Error("error publishing segmentation task", "job_id", job.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue segmentation task")
	}

	slog.Info("submitted segmentation job", "job_id", job.Id)
	return api.SubmitJobResponse{Message: "Segmentation job submitted", JobId: job.Id}, nil
}

func (s *BackendService) ListJobs(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.ListJobsQuery](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	db := s.db.WithContext(ctx)
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	var jobs []database.SegmentationJob
	if err := db.Order("creation_time DESC").Find(&jobs).Error; err != nil {
		slog.Error("error listing jobs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list jobs")
	}

	out := make([]api.Job, len(jobs))
	for i, job := range jobs {
		out[i] = convertJob(job)
	}
	return out, nil
}

func (s *BackendService) GetJob(r *http.Request) (any, error) {
	jobId, err := URLParamUUID(r, "job_id")
	if err != nil {
		return nil, err
	}

	job, err := s.loadJob(r, jobId)
	if err != nil {
		return nil, err
	}
	return convertJob(*job), nil
}

// DownloadSubmission streams the merged submission CSV of a completed job.
func (s *BackendService) DownloadSubmission(w http.ResponseWriter, r *http.Request) {
	jobId, err := URLParamUUID(r, "job_id")
	if err != nil {
		writeHandlerError(w, err)
		return
	}

	job, err := s.loadJob(r, jobId)
	if err != nil {
		writeHandlerError(w, err)
		return
	}
	if job.Status != database.JobCompleted || !job.SubmissionPath.Valid {
		writeHandlerError(w, CodedErrorf(http.StatusConflict, "job %s has no submission artifact (status %s)", jobId, job.Status))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, job.SubmissionPath.String)
}

func (s *BackendService) loadJob(r *http.Request, jobId uuid.UUID) (*database.SegmentationJob, error) {
	var job database.SegmentationJob
	if err := s.db.WithContext(r.Context()).First(&job, "id = ?", jobId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "job not found")
		}
		slog.Error("error getting job", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to get job")
	}
	return &job, nil
}

func convertJob(job database.SegmentationJob) api.Job {
	out := api.Job{
		Id:            job.Id,
		JobName:       job.JobName,
		Status:        job.Status,
		CreationTime:  job.CreationTime,
		Threshold:     job.Threshold,
		MinArea:       job.MinArea,
		UseTTA:        job.UseTTA,
		PositiveCount: job.PositiveCount,
	}
	if job.CompletionTime.Valid {
		t := job.CompletionTime.Time
		out.CompletionTime = &t
	}
	if job.SubmissionPath.Valid {
		out.SubmissionPath = job.SubmissionPath.String
	}
	if job.ProbMapPath.Valid {
		out.ProbMapPath = job.ProbMapPath.String
	}
	if job.ErrorMessage.Valid {
		out.Error = job.ErrorMessage.String
	}
	return out
}
