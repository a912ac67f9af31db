package manager

import (
	"context"
	"fmt"

	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/models"
	"github.com/avorra/geobridge/pkg/uploader"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobManager provides programmatic access to upload jobs.
type JobManager struct {
	DB      *gorm.DB
	Clients *Clients
}

func NewJobManager(db *gorm.DB, clients *Clients) *JobManager {
	return &JobManager{DB: db, Clients: clients}
}

// Enqueue validates the request against the target instance's
// capabilities and queues the job. A legacy instance rejects the
// whole job up front rather than failing mid-sequence.
func (m *JobManager) Enqueue(ctx context.Context, req EnqueueUploadRequest) (*models.UploadJob, error) {
	if req.LayerPath == "" || req.LayerTitle == "" {
		return nil, fmt.Errorf("layer title and layer path are required")
	}

	var conn models.Connection

	err := m.DB.WithContext(ctx).First(&conn, "id = ?", req.ConnectionID).Error

	if err != nil {
		return nil, err
	}

	client, err := m.Clients.For(ctx, &conn)

	if err != nil {
		return nil, err
	}

	if !client.Supports(geonode.CapUploadLayer) {
		return nil, &geonode.Error{
			Kind:    geonode.KindAPIIncompatible,
			Message: fmt.Sprintf("instance %s speaks the %s API, which does not accept uploads", conn.Name, conn.APIVersion),
		}
	}

	job := models.UploadJob{
		ID:           uuid.Must(uuid.NewV7()),
		ConnectionID: req.ConnectionID,
		Stage:        models.StageQueued,
		LayerTitle:   req.LayerTitle,
		LayerPath:    req.LayerPath,
		MetadataPath: req.MetadataPath,
		StylePath:    req.StylePath,
	}

	if err := m.DB.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue upload job: %w", err)
	}

	return &job, nil
}

func (m *JobManager) Get(ctx context.Context, id uuid.UUID) (*models.UploadJob, error) {
	var job models.UploadJob

	err := m.DB.WithContext(ctx).First(&job, "id = ?", id).Error

	if err != nil {
		return nil, err
	}

	return &job, nil
}

// Report returns the job's outcome including the completed/pending
// stage split.
func (m *JobManager) Report(ctx context.Context, id uuid.UUID) (*uploader.Report, error) {
	job, err := m.Get(ctx, id)

	if err != nil {
		return nil, err
	}

	report := uploader.BuildReport(job)

	return &report, nil
}

// Cancel stops further stage transitions. Completed stages are left
// in place. A still-queued job fails immediately; a running job stops
// at its next stage boundary.
func (m *JobManager) Cancel(ctx context.Context, id uuid.UUID) (*models.UploadJob, error) {
	job, err := m.Get(ctx, id)

	if err != nil {
		return nil, err
	}

	if job.Terminal() {
		return job, nil
	}

	updates := map[string]interface{}{"cancelled": true}

	if job.Stage == models.StageQueued {
		msg := "job cancelled before it started"
		updates["stage"] = models.StageFailed
		updates["error_message"] = msg
	}

	err = m.DB.
		WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("id = ?", id).
		Updates(updates).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	return m.Get(ctx, id)
}

func (m *JobManager) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.UploadJob, error) {
	var jobs []models.UploadJob

	err := m.DB.
		WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("created_at DESC").
		Find(&jobs).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
