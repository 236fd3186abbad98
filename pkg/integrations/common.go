package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a whole request, body included. Installer payloads
// can be large, so it is generous compared to a metadata API.
const DefaultTimeout = 10 * time.Minute

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with the given timeout.
// A timeout <= 0 uses [DefaultTimeout].
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// JoinURL joins a base endpoint and path segments with single slashes,
// skipping empty segments. Each segment is path-escaped.
//
//	JoinURL("https://chocolatey.org/api/v2/package/", "git", "")
//	// https://chocolatey.org/api/v2/package/git
func JoinURL(base string, segments ...string) string {
	parts := []string{strings.TrimRight(base, "/")}
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}
