package models

import (
	"time"

	"github.com/google/uuid"
)

// Upload job stages, in execution order. A later stage is never
// attempted once an earlier one has failed.
const (
	StageQueued            = "queued"
	StageUploading         = "uploading"
	StageAttachingMetadata = "attaching-metadata"
	StageAttachingStyle    = "attaching-style"
	StageComplete          = "complete"
	StageFailed            = "failed"
)

// UploadJob tracks one multi-stage publication of a layer to a
// GeoNode instance. The per-stage flags survive a mid-sequence
// failure so the partial server-side state stays reportable; there is
// no compensating deletion of completed stages.
type UploadJob struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"connection_id"`

	Stage string `gorm:"type:varchar(30);not null;index" json:"stage"`

	LayerPath    string `gorm:"type:varchar(512);not null" json:"layer_path"`
	LayerTitle   string `gorm:"type:varchar(255);not null" json:"layer_title"`
	MetadataPath string `gorm:"type:varchar(512)" json:"metadata_path"`
	StylePath    string `gorm:"type:varchar(512)" json:"style_path"`

	// Remote id assigned by the server once the layer upload succeeds.
	RemoteID string `gorm:"type:varchar(100)" json:"remote_id"`

	Uploaded         bool `gorm:"default:false;not null" json:"uploaded"`
	MetadataAttached bool `gorm:"default:false;not null" json:"metadata_attached"`
	StyleAttached    bool `gorm:"default:false;not null" json:"style_attached"`

	Cancelled bool `gorm:"default:false;not null" json:"cancelled"`

	// Set when a runner claims the job, refreshed on each stage
	// transition. Jobs whose claim goes stale are requeued.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	ErrorKind    string  `gorm:"type:varchar(30)" json:"error_kind,omitempty"`
	ErrorMessage *string `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Connection *Connection `gorm:"foreignKey:ConnectionID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (UploadJob) TableName() string {
	return "gb_upload_jobs"
}

// Terminal reports whether no further stage transitions are possible.
func (j *UploadJob) Terminal() bool {
	return j.Stage == StageComplete || j.Stage == StageFailed
}
