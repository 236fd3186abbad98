// Package rewrite points install scripts at locally mirrored payloads.
//
// Every remote URL literal found in a package's PowerShell scripts is fetched
// into a [mirror.Cache] and replaced in place by the absolute path of the
// local copy, so the repacked package installs without leaving the network
// it was built on.
package rewrite

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/chocorepack/pkg/errors"
	"github.com/matzehuels/chocorepack/pkg/mirror"
)

// ScriptExtension is the suffix (case-insensitive) of rewritten files.
const ScriptExtension = ".ps1"

// urlLiteral matches a quoted http(s) URL. The character class is kept
// verbatim from the scripts this tool has always handled; note that
// [$-_] is a range and also admits quote characters. On a line with two
// quoted URLs the match is greedy and spans both, so they are mirrored as
// one URL named after the last path segment.
var urlLiteral = regexp.MustCompile(`['"]https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\), ]|(?:%[0-9a-fA-F][0-9a-fA-F]))+['"]`)

// Stats summarises a rewrite.
type Stats struct {
	Files     int // scripts processed
	URLs      int // URL literals replaced
	CacheHits int // URLs served from the mirror
	Downloads int // URLs fetched from the network
}

func (s *Stats) add(o Stats) {
	s.Files += o.Files
	s.URLs += o.URLs
	s.CacheHits += o.CacheHits
	s.Downloads += o.Downloads
}

// Rewriter rewrites scripts against a mirror.
type Rewriter struct {
	cache  *mirror.Cache
	logger *log.Logger
}

// New returns a Rewriter backed by cache. A nil logger discards output.
func New(cache *mirror.Cache, logger *log.Logger) *Rewriter {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Rewriter{cache: cache, logger: logger}
}

// RewriteDir rewrites every script directly inside dir, in name order.
// Subdirectories are not visited. The first failing script aborts the walk;
// scripts already rewritten stay rewritten.
func (r *Rewriter) RewriteDir(ctx context.Context, dir string) (Stats, error) {
	var total Stats
	entries, err := os.ReadDir(dir)
	if err != nil {
		return total, errors.Wrap(errors.ErrCodeInvalidPath, err, "read scripts directory")
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsScript(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		s, err := r.RewriteFile(ctx, filepath.Join(dir, e.Name()))
		total.add(s)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// IsScript reports whether name is a PowerShell script.
func IsScript(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ScriptExtension)
}

// RewriteFile rewrites one script. The new content is written next to the
// original and renamed over it, so on failure the original is untouched.
func (r *Rewriter) RewriteFile(ctx context.Context, path string) (stats Stats, err error) {
	src, err := os.Open(path)
	if err != nil {
		return stats, errors.Wrap(errors.ErrCodeInvalidPath, err, "open script")
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return stats, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return stats, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	rd := bufio.NewReader(src)
	w := bufio.NewWriter(tmp)
	for {
		line, readErr := rd.ReadString('\n')
		if line != "" {
			out, s, lineErr := r.rewriteLine(ctx, path, line)
			if lineErr != nil {
				return stats, lineErr
			}
			stats.add(s)
			if _, err := w.WriteString(out); err != nil {
				return stats, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return stats, readErr
		}
	}
	if err := w.Flush(); err != nil {
		return stats, err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return stats, err
	}
	if err := tmp.Close(); err != nil {
		return stats, err
	}
	src.Close()
	if err := os.Rename(tmpName, path); err != nil {
		return stats, fmt.Errorf("replace script: %w", err)
	}
	stats.Files = 1
	return stats, nil
}

// rewriteLine replaces the first URL literal on line with its mirrored path.
// Quote characters around the URL are preserved.
func (r *Rewriter) rewriteLine(ctx context.Context, path, line string) (string, Stats, error) {
	var stats Stats
	if !strings.Contains(line, "http://") && !strings.Contains(line, "https://") {
		return line, stats, nil
	}
	m := urlLiteral.FindString(line)
	if m == "" {
		return line, stats, nil
	}
	rawURL := m[1 : len(m)-1]

	if _, err := mirror.Filename(rawURL); err != nil {
		r.logger.Warn("skipping URL without file name", "script", filepath.Base(path), "url", rawURL)
		return line, stats, nil
	}

	local, hit, err := r.cache.Fetch(ctx, rawURL)
	if err != nil {
		r.logger.Error("download failed", "url", rawURL, "err", err)
		return "", stats, err
	}
	if hit {
		stats.CacheHits++
		r.logger.Info("using mirrored file", "file", filepath.Base(local))
	} else {
		stats.Downloads++
		r.logger.Info("downloaded", "url", rawURL, "to", local)
	}
	stats.URLs++
	return strings.ReplaceAll(line, rawURL, local), stats, nil
}
