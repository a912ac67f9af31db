// Package uploader drives multi-stage upload jobs: layer upload,
// metadata attachment, style attachment. Stages run in a fixed order
// and a later stage is never attempted after an earlier failure.
// Completed server-side effects are never rolled back; the job row
// records which stages completed.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/models"
	"gorm.io/gorm"
)

// ClientFactory builds a dialect client for a connection.
type ClientFactory interface {
	For(ctx context.Context, conn *models.Connection) (geonode.Client, error)
}

// Claims older than this are considered orphaned (runner crash,
// failed stage persist) and go back to the queue.
const defaultStaleAfter = 30 * time.Minute

type Runner struct {
	DB         *gorm.DB
	Clients    ClientFactory
	Interval   time.Duration
	StaleAfter time.Duration

	log *logger.Logger
}

func NewRunner(db *gorm.DB, clients ClientFactory, interval time.Duration, log *logger.Logger) *Runner {
	return &Runner{
		DB:         db,
		Clients:    clients,
		Interval:   interval,
		StaleAfter: defaultStaleAfter,
		log:        log.With("component", "uploader"),
	}
}

func (r *Runner) Start(ctx context.Context) {
	r.log.Info("starting upload job loop")

	r.runPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("stopping upload job loop")
			return
		case <-time.After(r.Interval):
			r.runPending(ctx)
		}
	}
}

func (r *Runner) runPending(ctx context.Context) {
	r.requeueStale(ctx)

	var jobs []models.UploadJob

	err := r.DB.
		WithContext(ctx).
		Where("stage = ? AND cancelled = ?", models.StageQueued, false).
		Order("created_at ASC").
		Find(&jobs).
		Error

	if err != nil {
		r.log.Error("failed to fetch queued jobs", "error", err)
		return
	}

	for _, job := range jobs {
		if r.claim(ctx, &job) {
			go r.runJob(ctx, job)
		}
	}
}

// requeueStale returns claimed jobs whose runner stopped reporting
// progress to the queue so the next poll picks them up again.
func (r *Runner) requeueStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.StaleAfter)

	running := []string{
		models.StageUploading,
		models.StageAttachingMetadata,
		models.StageAttachingStyle,
	}

	result := r.DB.
		WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("stage IN ? AND cancelled = ? AND claimed_at < ?", running, false, cutoff).
		Updates(map[string]interface{}{
			"stage":      models.StageQueued,
			"claimed_at": nil,
		})

	if result.Error != nil {
		r.log.Error("failed to requeue stale jobs", "error", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		r.log.Warn("requeued stale upload jobs", "count", result.RowsAffected)
	}
}

// claim moves the job from queued to uploading. The compare-and-swap
// on the stage column guarantees a job is only ever run once even
// with several runners polling the same database.
func (r *Runner) claim(ctx context.Context, job *models.UploadJob) bool {
	now := time.Now().UTC()

	result := r.DB.
		WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("id = ? AND stage = ?", job.ID, models.StageQueued).
		Updates(map[string]interface{}{
			"stage":      models.StageUploading,
			"claimed_at": now,
		})

	if result.Error != nil {
		r.log.Error("failed to claim job", "job_id", job.ID, "error", result.Error)
		return false
	}

	if result.RowsAffected == 0 {
		return false
	}

	job.Stage = models.StageUploading
	job.ClaimedAt = &now

	return true
}

// RunOnce drives a single already-claimed job through its remaining
// stages. Exposed for the worker and for synchronous use in tests.
func (r *Runner) RunOnce(ctx context.Context, job models.UploadJob) {
	r.runJob(ctx, job)
}

func (r *Runner) runJob(ctx context.Context, job models.UploadJob) {
	log := r.log.With("job_id", job.ID, "connection_id", job.ConnectionID)

	var conn models.Connection

	err := r.DB.WithContext(ctx).First(&conn, "id = ?", job.ConnectionID).Error

	if err != nil {
		r.fail(ctx, &job, fmt.Errorf("connection lookup failed: %w", err))
		return
	}

	client, err := r.Clients.For(ctx, &conn)

	if err != nil {
		r.fail(ctx, &job, err)
		return
	}

	// Stage: uploading.
	if !job.Uploaded {
		remoteID, err := client.UploadLayer(ctx, geonode.UploadPayload{
			Title:     job.LayerTitle,
			LayerPath: job.LayerPath,
		})

		if err != nil {
			r.fail(ctx, &job, err)
			return
		}

		job.RemoteID = remoteID
		job.Uploaded = true

		log.Info("layer uploaded", "remote_id", remoteID)
	}

	if r.stopped(ctx, &job) {
		return
	}

	// Stage: attaching-metadata. Skipped when the job carries no
	// metadata payload.
	if job.MetadataPath != "" && !job.MetadataAttached {
		if !r.advance(ctx, &job, models.StageAttachingMetadata) {
			return
		}

		if err := client.AttachMetadata(ctx, job.RemoteID, job.MetadataPath); err != nil {
			r.fail(ctx, &job, err)
			return
		}

		job.MetadataAttached = true

		log.Info("metadata attached", "remote_id", job.RemoteID)
	}

	if r.stopped(ctx, &job) {
		return
	}

	// Stage: attaching-style.
	if job.StylePath != "" && !job.StyleAttached {
		if !r.advance(ctx, &job, models.StageAttachingStyle) {
			return
		}

		if err := client.AttachStyle(ctx, job.RemoteID, job.StylePath); err != nil {
			r.fail(ctx, &job, err)
			return
		}

		job.StyleAttached = true

		log.Info("style attached", "remote_id", job.RemoteID)
	}

	job.Stage = models.StageComplete

	if err := r.persist(ctx, &job); err != nil {
		log.Error("failed to persist completed job", "error", err)
		return
	}

	log.Info("upload job complete", "remote_id", job.RemoteID)
}

// stopped checks the cancel flag between stages. Cancellation halts
// further transitions but never rolls back completed stages. A dying
// runner context is not a user cancel: the job goes back to the queue
// with its completed-stage flags intact and resumes on the next poll.
func (r *Runner) stopped(ctx context.Context, job *models.UploadJob) bool {
	if ctx.Err() != nil {
		r.release(context.WithoutCancel(ctx), job)
		return true
	}

	var cancelled bool

	err := r.DB.
		WithContext(ctx).
		Model(&models.UploadJob{}).
		Select("cancelled").
		Where("id = ?", job.ID).
		Scan(&cancelled).
		Error

	if err != nil {
		r.log.Error("failed to check cancel flag", "job_id", job.ID, "error", err)
		return false
	}

	if cancelled {
		job.Cancelled = true
		r.markCancelled(ctx, job)
		return true
	}

	return false
}

func (r *Runner) release(ctx context.Context, job *models.UploadJob) {
	job.Stage = models.StageQueued
	job.ClaimedAt = nil

	if err := r.persist(ctx, job); err != nil {
		r.log.Error("failed to release job", "job_id", job.ID, "error", err)
		return
	}

	r.log.Info("runner stopping, upload job requeued", "job_id", job.ID)
}

func (r *Runner) markCancelled(ctx context.Context, job *models.UploadJob) {
	job.Cancelled = true
	job.Stage = models.StageFailed

	msg := "job cancelled; completed stages were left in place"
	job.ErrorMessage = &msg

	if err := r.persist(ctx, job); err != nil {
		r.log.Error("failed to persist cancelled job", "job_id", job.ID, "error", err)
		return
	}

	r.log.Info("upload job cancelled", "job_id", job.ID)
}

func (r *Runner) advance(ctx context.Context, job *models.UploadJob, stage string) bool {
	job.Stage = stage

	now := time.Now().UTC()
	job.ClaimedAt = &now

	if err := r.persist(ctx, job); err != nil {
		r.log.Error("failed to persist stage transition", "job_id", job.ID, "stage", stage, "error", err)
		return false
	}

	return true
}

func (r *Runner) fail(ctx context.Context, job *models.UploadJob, cause error) {
	job.ErrorKind = string(geonode.KindOf(cause))

	msg := cause.Error()
	job.ErrorMessage = &msg
	job.Stage = models.StageFailed

	if err := r.persist(ctx, job); err != nil {
		r.log.Error("failed to persist failed job", "job_id", job.ID, "error", err)
		return
	}

	var ge *geonode.Error

	if errors.As(cause, &ge) && ge.Kind == geonode.KindAuth {
		r.log.Warn("upload job failed: authentication rejected, not retrying",
			"job_id", job.ID, "stage", job.Stage)
		return
	}

	r.log.Error("upload job failed", "job_id", job.ID, "error", cause)
}

func (r *Runner) persist(ctx context.Context, job *models.UploadJob) error {
	return r.DB.
		WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"stage":             job.Stage,
			"remote_id":         job.RemoteID,
			"uploaded":          job.Uploaded,
			"metadata_attached": job.MetadataAttached,
			"style_attached":    job.StyleAttached,
			"cancelled":         job.Cancelled,
			"claimed_at":        job.ClaimedAt,
			"error_kind":        job.ErrorKind,
			"error_message":     job.ErrorMessage,
		}).
		Error
}
