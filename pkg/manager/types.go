package manager

import (
	"github.com/google/uuid"
)

// CreateConnectionRequest configures a new GeoNode connection.
type CreateConnectionRequest struct {
	Name          string `json:"name"`
	BaseURL       string `json:"base_url"`
	CredentialRef string `json:"credential_ref"`
}

// UpdateConnectionRequest edits an existing connection. Changing the
// base URL re-runs API detection.
type UpdateConnectionRequest struct {
	Name          *string `json:"name,omitempty"`
	BaseURL       *string `json:"base_url,omitempty"`
	CredentialRef *string `json:"credential_ref,omitempty"`
}

// EnqueueUploadRequest queues a new multi-stage upload job. Metadata
// and style paths are optional; their stages are skipped when empty.
type EnqueueUploadRequest struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	LayerTitle   string    `json:"layer_title"`
	LayerPath    string    `json:"layer_path"`
	MetadataPath string    `json:"metadata_path,omitempty"`
	StylePath    string    `json:"style_path,omitempty"`
}
