package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	backend "pneumo-backend/internal/api"
	"pneumo-backend/internal/database"
	"pneumo-backend/internal/messaging"
	"pneumo-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func createRouter(db *gorm.DB, queue messaging.Publisher) chi.Router {
	service := backend.NewBackendService(db, queue)
	router := chi.NewRouter()
	service.AddRoutes(router)
	return router
}

func TestSubmitSegmentationJob(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue()
	router := createRouter(db, queue)

	body, err := json.Marshal(api.SubmitJobRequest{
		JobName:            "nightly-run",
		ClassificationPath: "/data/stage1.csv",
		ImageDir:           "/data/images",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response api.SubmitJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	var job database.SegmentationJob
	require.NoError(t, db.First(&job, "id = ?", response.JobId).Error)
	assert.Equal(t, database.JobQueued, job.Status)
	assert.Equal(t, backend.DefaultThreshold, job.Threshold)
	assert.Equal(t, backend.DefaultMinArea, job.MinArea)
	assert.Equal(t, backend.DefaultBatchSize, job.BatchSize)
	assert.True(t, job.UseTTA)

	ch := queue.Tasks()
	queue.Close()
	var published []messaging.Task
	for task := range ch {
		published = append(published, task)
	}
	require.Len(t, published, 1)
	var payload messaging.SegmentTaskPayload
	require.NoError(t, json.Unmarshal(published[0].Payload(), &payload))
	assert.Equal(t, response.JobId, payload.JobId)
}

func TestSubmitSegmentationJob_Validation(t *testing.T) {
	db := createDB(t)
	router := createRouter(db, messaging.NewInMemoryQueue())

	badThreshold := 1.5
	tests := []struct {
		name string
		req  api.SubmitJobRequest
	}{
		{"bad name", api.SubmitJobRequest{JobName: "no spaces allowed", ClassificationPath: "a.csv", ImageDir: "d"}},
		{"missing classification path", api.SubmitJobRequest{JobName: "run"}},
		{"missing image dir", api.SubmitJobRequest{JobName: "run", ClassificationPath: "a.csv"}},
		{"threshold out of range", api.SubmitJobRequest{JobName: "run", ClassificationPath: "a.csv", ImageDir: "d", Threshold: &badThreshold}},
	}
	for _, tt := range tests {
		body, err := json.Marshal(tt.req)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
	}
}

func TestGetJob(t *testing.T) {
	jobId := uuid.New()
	db := createDB(t, &database.SegmentationJob{
		Id:                 jobId,
		JobName:            "run-1",
		Status:             database.JobCompleted,
		CreationTime:       time.Now(),
		ClassificationPath: "a.csv",
		ImageDir:           "d",
		Threshold:          0.5,
		MinArea:            3500,
		BatchSize:          32,
		UseTTA:             true,
		PositiveCount:      7,
		SubmissionPath:     sql.NullString{String: "/artifacts/submission.csv", Valid: true},
	})
	router := createRouter(db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobId.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var job api.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "run-1", job.JobName)
	assert.Equal(t, database.JobCompleted, job.Status)
	assert.Equal(t, 7, job.PositiveCount)
	assert.Equal(t, "/artifacts/submission.csv", job.SubmissionPath)
}

func TestGetJob_NotFound(t *testing.T) {
	router := createRouter(createDB(t), messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobs_StatusFilter(t *testing.T) {
	db := createDB(t,
		&database.SegmentationJob{Id: uuid.New(), JobName: "a", Status: database.JobQueued, CreationTime: time.Now(), ClassificationPath: "a.csv", ImageDir: "d", Threshold: 0.5, MinArea: 1, BatchSize: 1},
		&database.SegmentationJob{Id: uuid.New(), JobName: "b", Status: database.JobCompleted, CreationTime: time.Now(), ClassificationPath: "a.csv", ImageDir: "d", Threshold: 0.5, MinArea: 1, BatchSize: 1},
	)
	router := createRouter(db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=COMPLETED", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []api.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "b", jobs[0].JobName)
}

func TestDownloadSubmission(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "submission_final.csv")
	require.NoError(t, os.WriteFile(path, []byte("ImageId,EncodedPixels\na,-1\n"), 0o644))

	completed := uuid.New()
	queued := uuid.New()
	db := createDB(t,
		&database.SegmentationJob{Id: completed, JobName: "done", Status: database.JobCompleted, CreationTime: time.Now(), ClassificationPath: "a.csv", ImageDir: "d", Threshold: 0.5, MinArea: 1, BatchSize: 1, SubmissionPath: sql.NullString{String: path, Valid: true}},
		&database.SegmentationJob{Id: queued, JobName: "waiting", Status: database.JobQueued, CreationTime: time.Now(), ClassificationPath: "a.csv", ImageDir: "d", Threshold: 0.5, MinArea: 1, BatchSize: 1},
	)
	router := createRouter(db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+completed.String()+"/submission", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ImageId,EncodedPixels")

	req = httptest.NewRequest(http.MethodGet, "/jobs/"+queued.String()+"/submission", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
