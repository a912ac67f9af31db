package manager

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avorra/geobridge/pkg/credentials"
	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/models"
)

// Clients builds dialect clients for stored connections, resolving
// the connection's credential reference through the host's store at
// request time.
type Clients struct {
	Store      credentials.Store
	HTTPClient *http.Client
	Log        *logger.Logger
}

func NewClients(store credentials.Store, httpClient *http.Client, log *logger.Logger) *Clients {
	return &Clients{
		Store:      store,
		HTTPClient: httpClient,
		Log:        log,
	}
}

// For returns a client speaking the connection's detected dialect.
func (c *Clients) For(ctx context.Context, conn *models.Connection) (geonode.Client, error) {
	cred, err := c.Store.Resolve(ctx, conn.CredentialRef)

	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials for connection %s: %w", conn.Name, err)
	}

	return geonode.New(conn.BaseURL, conn.APIVersion, cred, c.HTTPClient, c.Log)
}

// Detect probes a base URL for its API generation.
func (c *Clients) Detect(ctx context.Context, baseURL, credentialRef string) (string, error) {
	cred, err := c.Store.Resolve(ctx, credentialRef)

	if err != nil {
		return "", fmt.Errorf("failed to resolve credentials: %w", err)
	}

	return geonode.Detect(ctx, baseURL, cred, c.HTTPClient, c.Log)
}
