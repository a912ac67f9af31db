package geonode

import "time"

// Capability is a feature a dialect implementation can perform.
// Mirrors the per-client capability list the instance's API
// generation implies; callers gate requests on it instead of
// branching on the version string.
type Capability string

const (
	CapFilterKeyword   Capability = "filter-keyword"
	CapFilterCategory  Capability = "filter-category"
	CapFilterBbox      Capability = "filter-bbox"
	CapFilterAccess    Capability = "filter-access"
	CapUploadLayer     Capability = "upload-layer"
	CapAttachMetadata  Capability = "attach-metadata"
	CapAttachStyle     Capability = "attach-style"
	CapDeleteResource  Capability = "delete-resource"
)

// Resource types served by a GeoNode instance. Maps are browse-only:
// they can be listed and searched but not uploaded or styled through
// this client.
const (
	ResourceTypeLayer = "layer"
	ResourceTypeMap   = "map"
)

// BBox is a bounding box in the instance's default CRS.
type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

type Style struct {
	Name   string `json:"name"`
	SLDURL string `json:"sld_url"`
}

// BriefResource is the summary form returned by list endpoints.
type BriefResource struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	GeometryType    string `json:"geometry_type"`
	Owner           string `json:"owner"`
	Access          string `json:"access"`
	Bbox            BBox   `json:"bbox"`
	DetailURL       string `json:"detail_url"`
	DefaultStyleURL string `json:"default_style_url"`
}

// Resource is the full detail form of a layer.
type Resource struct {
	BriefResource

	Keywords     []string   `json:"keywords,omitempty"`
	Category     string     `json:"category,omitempty"`
	TemporalFrom *time.Time `json:"temporal_from,omitempty"`
	TemporalTo   *time.Time `json:"temporal_to,omitempty"`
	MetadataURL  string     `json:"metadata_url,omitempty"`
	Styles       []Style    `json:"styles,omitempty"`
}

type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// TotalPages derives the page count; zero while Total is unknown.
func (p Pagination) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// ListParams are the dialect-level list parameters. The search engine
// is responsible for only setting filters the target dialect
// supports; dialects serialize what they are given.
type ListParams struct {
	Keyword  string
	Category string
	Bbox     *BBox
	Access   string

	OrderBy string
	Reverse bool

	Page     int
	PageSize int
}

type ListResult struct {
	Resources  []BriefResource
	Pagination Pagination
}

// UploadPayload references the files making up a new layer. Paths are
// payload references handed over by the host, not content owned by
// the bridge.
type UploadPayload struct {
	Title     string
	LayerPath string
}
