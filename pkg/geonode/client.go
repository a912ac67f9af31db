// Package geonode is the HTTP client for remote GeoNode instances.
// The legacy tastypie API and the v2 REST API are both supported
// behind one Client interface. The generation is detected once per
// connection and cached.
package geonode

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avorra/geobridge/pkg/credentials"
	"github.com/avorra/geobridge/pkg/logger"
)

const (
	APIVersionV2     = "v2"
	APIVersionLegacy = "legacy"

	// Largest page sizes the two generations serve. Requests above
	// these are clamped by the search engine.
	v2MaxPageSize     = 100
	legacyMaxPageSize = 1000

	defaultTimeout = 30 * time.Second
)

// Client is the normalized surface over one GeoNode instance.
type Client interface {
	BaseURL() string
	APIVersion() string
	Capabilities() []Capability
	Supports(c Capability) bool
	MaxPageSize() int

	ListResources(ctx context.Context, p ListParams) (*ListResult, error)
	ListMaps(ctx context.Context, p ListParams) (*ListResult, error)
	GetResource(ctx context.Context, id string) (*Resource, error)
	GetStyle(ctx context.Context, styleURL string) ([]byte, error)

	UploadLayer(ctx context.Context, p UploadPayload) (string, error)
	AttachMetadata(ctx context.Context, id string, metadataPath string) error
	AttachStyle(ctx context.Context, id string, stylePath string) error
	DeleteResource(ctx context.Context, id string) error
}

// New builds the dialect implementation matching a previously
// detected API version.
func New(baseURL, apiVersion string, cred credentials.Credential, httpClient *http.Client, log *logger.Logger) (Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	d := &doer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cred:       cred,
		httpClient: httpClient,
		log:        log.With("component", "geonode_client", "base_url", baseURL),
	}

	switch apiVersion {
	case APIVersionV2:
		return &v2Client{doer: d}, nil
	case APIVersionLegacy:
		return &legacyClient{doer: d}, nil
	}

	return nil, fmt.Errorf("unknown GeoNode API version %q", apiVersion)
}

// Detect probes the instance once to select an API generation: a 200
// from /api/v2/ selects v2, otherwise a 200 from /api/ selects
// legacy. The result is meant to be persisted on the connection and
// reused until the connection is edited.
func Detect(ctx context.Context, baseURL string, cred credentials.Credential, httpClient *http.Client, log *logger.Logger) (string, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	d := &doer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cred:       cred,
		httpClient: httpClient,
		log:        log.With("component", "geonode_detect", "base_url", baseURL),
	}

	v2Err := d.probe(ctx, d.baseURL+"/api/v2/")

	if v2Err == nil {
		d.log.Debug("detected v2 API")
		return APIVersionV2, nil
	}

	// Network failures abort detection outright; a reachable server
	// that rejects /api/v2/ may still speak the legacy API.
	if KindOf(v2Err) == KindNetwork {
		return "", v2Err
	}

	legacyErr := d.probe(ctx, d.baseURL+"/api/")

	if legacyErr == nil {
		d.log.Debug("detected legacy API")
		return APIVersionLegacy, nil
	}

	return "", fmt.Errorf("no supported GeoNode API found at %s: %w", baseURL, legacyErr)
}
