// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about repack runs, the download mirror, and HTTP calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetRepackHooks(&myRepackHooks{})
//	    observability.SetMirrorHooks(&myMirrorHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Repack().OnPackageStart(ctx, name, version)
//	// ... fetch, prepare, pack ...
//	observability.Repack().OnPackageComplete(ctx, name, version, outcome, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Repack Hooks
// =============================================================================

// RepackHooks receives events from the repack orchestrator.
type RepackHooks interface {
	// OnPackageStart is called when a package request is taken off the worklist.
	OnPackageStart(ctx context.Context, name, version string)
	// OnPackageComplete is called once the package itself has been handled.
	OnPackageComplete(ctx context.Context, name, version, outcome string, duration time.Duration, err error)
	// OnPack is called after every packer invocation.
	OnPack(ctx context.Context, name, version string, exitCode int, duration time.Duration)
}

// =============================================================================
// Mirror Hooks
// =============================================================================

// MirrorHooks receives events from the installer download mirror.
type MirrorHooks interface {
	// OnCacheHit records a URL whose file was already mirrored.
	OnCacheHit(ctx context.Context, url, filename string)
	// OnDownload records a fresh download (err is non-nil on failure).
	OnDownload(ctx context.Context, url, filename string, size int64, duration time.Duration, err error)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRepackHooks is a no-op implementation of RepackHooks.
type NoopRepackHooks struct{}

func (NoopRepackHooks) OnPackageStart(context.Context, string, string) {}
func (NoopRepackHooks) OnPackageComplete(context.Context, string, string, string, time.Duration, error) {
}
func (NoopRepackHooks) OnPack(context.Context, string, string, int, time.Duration) {}

// NoopMirrorHooks is a no-op implementation of MirrorHooks.
type NoopMirrorHooks struct{}

func (NoopMirrorHooks) OnCacheHit(context.Context, string, string) {}
func (NoopMirrorHooks) OnDownload(context.Context, string, string, int64, time.Duration, error) {
}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	repackHooks RepackHooks = NoopRepackHooks{}
	mirrorHooks MirrorHooks = NoopMirrorHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetRepackHooks registers custom repack hooks.
// This should be called once at application startup before any repack run.
func SetRepackHooks(h RepackHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		repackHooks = h
	}
}

// SetMirrorHooks registers custom mirror hooks.
func SetMirrorHooks(h MirrorHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		mirrorHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Repack returns the registered repack hooks.
func Repack() RepackHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return repackHooks
}

// Mirror returns the registered mirror hooks.
func Mirror() MirrorHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return mirrorHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	repackHooks = NoopRepackHooks{}
	mirrorHooks = NoopMirrorHooks{}
	httpHooks = NoopHTTPHooks{}
}
