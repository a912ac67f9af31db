package uploader

import (
	"github.com/avorra/geobridge/pkg/models"
	"github.com/google/uuid"
)

// Report describes the outcome of an upload job, including which
// stages completed when the job failed partway. A failed job whose
// layer made it to the server is reported as a partial success.
type Report struct {
	JobID    uuid.UUID `json:"job_id"`
	Stage    string    `json:"stage"`
	RemoteID string    `json:"remote_id,omitempty"`

	CompletedStages []string `json:"completed_stages"`
	PendingStages   []string `json:"pending_stages"`

	PartialSuccess bool    `json:"partial_success"`
	Cancelled      bool    `json:"cancelled,omitempty"`
	ErrorKind      string  `json:"error_kind,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
}

// BuildReport derives the report from the persisted job row.
func BuildReport(job *models.UploadJob) Report {
	report := Report{
		JobID:        job.ID,
		Stage:        job.Stage,
		RemoteID:     job.RemoteID,
		Cancelled:    job.Cancelled,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
	}

	record := func(stage string, requested, done bool) {
		if !requested {
			return
		}
		if done {
			report.CompletedStages = append(report.CompletedStages, stage)
		} else {
			report.PendingStages = append(report.PendingStages, stage)
		}
	}

	record(models.StageUploading, true, job.Uploaded)
	record(models.StageAttachingMetadata, job.MetadataPath != "", job.MetadataAttached)
	record(models.StageAttachingStyle, job.StylePath != "", job.StyleAttached)

	report.PartialSuccess = job.Stage == models.StageFailed &&
		len(report.CompletedStages) > 0 &&
		len(report.PendingStages) > 0

	return report
}
