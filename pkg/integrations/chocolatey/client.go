package chocolatey

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/matzehuels/chocorepack/pkg/httputil"
	"github.com/matzehuels/chocorepack/pkg/integrations"
)

// DefaultEndpoint is the public package download endpoint.
const DefaultEndpoint = "https://chocolatey.org/api/v2/package/"

// ArchiveName is the file name a fetched archive is saved under.
const ArchiveName = "origin.nupkg"

// Client downloads package archives from a Chocolatey registry.
type Client struct {
	*integrations.Client
	endpoint string
}

// NewClient creates a registry client for endpoint (DefaultEndpoint when
// empty) with the given retry policy.
func NewClient(endpoint string, retry httputil.Policy) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Client:   integrations.NewClient(nil, retry),
		endpoint: endpoint,
	}
}

// Endpoint returns the registry base URL.
func (c *Client) Endpoint() string { return c.endpoint }

// PackageURL returns the download URL for name at version. An empty version
// addresses the latest release.
func (c *Client) PackageURL(name, version string) string {
	return integrations.JoinURL(c.endpoint, name, version)
}

// FetchPackage downloads the archive for name/version into dir and returns
// its path.
//
// Returns an error wrapping [integrations.ErrNotFound] when the registry has
// no such package, or [integrations.ErrNetwork] for transport failures.
func (c *Client) FetchPackage(ctx context.Context, name, version, dir string) (string, error) {
	url := c.PackageURL(name, version)
	dest := filepath.Join(dir, ArchiveName)
	if _, err := c.Download(ctx, url, dest); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return "", fmt.Errorf("package %s: %w", describe(name, version), err)
		}
		return "", err
	}
	return dest, nil
}

func describe(name, version string) string {
	if version == "" {
		return name + " (latest)"
	}
	return name + " " + version
}
