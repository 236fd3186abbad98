package repack

import (
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/chocorepack/pkg/errors"
	"github.com/matzehuels/chocorepack/pkg/mirror"
)

// DefaultExtensionMarker identifies packages that are mirrored unchanged.
const DefaultExtensionMarker = ".extension"

// Config holds the settings of a repack run.
type Config struct {
	// OutputDir receives repacked archives and the downloads mirror.
	OutputDir string
	// Endpoint is the registry package endpoint (chocolatey.DefaultEndpoint
	// when empty).
	Endpoint string
	// Retries is the number of extra attempts for transient HTTP failures.
	// Zero means failed downloads are not retried.
	Retries int
	// Timeout bounds each HTTP request (integrations.DefaultTimeout when
	// zero).
	Timeout time.Duration
	// PackerCommand is the packer executable and leading arguments
	// (DefaultPackCommand when empty).
	PackerCommand []string
	// StrictPack turns a failed pack into a fatal error.
	StrictPack bool
	// KeepWorkDirs keeps the per-package fetch and extract directories.
	KeepWorkDirs bool
	// ExtensionMarker is the name substring of packages copied through
	// without rewriting (DefaultExtensionMarker when empty).
	ExtensionMarker string
	// WorkDir is the parent of per-package temp directories (os.TempDir
	// when empty).
	WorkDir string
	// Logger receives progress output. Nil discards it.
	Logger *log.Logger
}

func (c *Config) setDefaults() {
	if len(c.PackerCommand) == 0 {
		c.PackerCommand = slices.Clone(DefaultPackCommand)
	}
	if c.ExtensionMarker == "" {
		c.ExtensionMarker = DefaultExtensionMarker
	}
	if c.Logger == nil {
		c.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

func (c *Config) validate() error {
	if c.OutputDir == "" {
		return errors.New(errors.ErrCodeInvalidInput, "output directory is required")
	}
	if c.Retries < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "retries must not be negative")
	}
	if c.WorkDir != "" {
		if info, err := os.Stat(c.WorkDir); err != nil || !info.IsDir() {
			return errors.New(errors.ErrCodeInvalidPath, "work directory %s does not exist", c.WorkDir)
		}
	}
	return nil
}

// Option customises a Repacker beyond its Config.
type Option func(*Repacker)

// WithFetcher replaces the registry client.
func WithFetcher(f Fetcher) Option {
	return func(r *Repacker) { r.fetcher = f }
}

// WithPacker replaces the packer.
func WithPacker(p Packer) Option {
	return func(r *Repacker) { r.packer = p }
}

// WithDownloader replaces the client used to mirror installer payloads.
func WithDownloader(d mirror.Downloader) Option {
	return func(r *Repacker) { r.downloader = d }
}

// WithHTTPClient sends registry and mirror requests through hc.
// It has no effect on a fetcher or downloader set by another option.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Repacker) { r.httpClient = hc }
}
