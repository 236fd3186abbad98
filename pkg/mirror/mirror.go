// Package mirror is the persistent store of installer payloads referenced by
// install scripts.
//
// Entries are keyed by the basename of the URL path only: two different URLs
// ending in the same file name share one entry, and the second is served
// from the first download. Cached bytes are never re-verified against the
// URL. The directory outlives a run, so later runs reuse every payload
// fetched before.
package mirror

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/chocorepack/pkg/errors"
	"github.com/matzehuels/chocorepack/pkg/observability"
)

// DirName is the name of the mirror directory under the output root.
const DirName = "downloads"

// Downloader fetches a URL into a file. [integrations.Client] implements it.
type Downloader interface {
	Download(ctx context.Context, rawURL, dest string) (int64, error)
}

// Cache is a directory of mirrored files.
type Cache struct {
	dir string
	dl  Downloader
}

// New returns a Cache rooted at dir that downloads misses with dl.
// The directory is not created until [Cache.EnsureDir].
func New(dir string, dl Downloader) *Cache {
	return &Cache{dir: dir, dl: dl}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// EnsureDir creates the cache directory if it does not exist.
func (c *Cache) EnsureDir() error {
	return os.MkdirAll(c.dir, 0o755)
}

// Filename returns the cache key for rawURL: the last segment of its path.
// It fails for URLs without a usable file name (e.g. "https://host/").
func Filename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "parse URL")
	}
	p := u.EscapedPath()
	name := path.Base(p)
	if strings.HasSuffix(p, "/") || name == "." || name == "/" || name == ".." {
		return "", errors.New(errors.ErrCodeInvalidInput, "URL %s has no file name", rawURL)
	}
	return name, nil
}

// Path returns the absolute local path rawURL is mirrored to.
func (c *Cache) Path(rawURL string) (string, error) {
	name, err := Filename(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Abs(filepath.Join(c.dir, name))
}

// Fetch returns the local path for rawURL, downloading it on a miss.
// hit reports whether a file of the same name was already present.
// Download failures are returned as DOWNLOAD_FAILED errors.
func (c *Cache) Fetch(ctx context.Context, rawURL string) (local string, hit bool, err error) {
	local, err = c.Path(rawURL)
	if err != nil {
		return "", false, err
	}
	name := filepath.Base(local)
	hooks := observability.Mirror()

	if _, err := os.Stat(local); err == nil {
		hooks.OnCacheHit(ctx, rawURL, name)
		return local, true, nil
	}

	start := time.Now()
	n, err := c.dl.Download(ctx, rawURL, local)
	hooks.OnDownload(ctx, rawURL, name, n, time.Since(start), err)
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeDownload, err, "download %s", rawURL)
	}
	return local, false, nil
}

// Entry is one mirrored file.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Entries lists mirrored files sorted by name. A missing directory yields
// no entries. In-flight temporary files are skipped.
func (c *Cache) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() || isPartial(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: de.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Clear removes every file in the cache directory and returns how many
// were removed. The directory itself is kept.
func (c *Cache) Clear() (int, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	count := 0
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, de.Name())); err == nil {
			count++
		}
	}
	return count, nil
}

func isPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".part")
}
