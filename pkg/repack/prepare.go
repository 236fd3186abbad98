package repack

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/chocorepack/pkg/errors"
	"github.com/matzehuels/chocorepack/pkg/mirror"
	"github.com/matzehuels/chocorepack/pkg/nupkg"
	"github.com/matzehuels/chocorepack/pkg/rewrite"
)

// ToolsDir is the package directory holding install scripts.
const ToolsDir = "tools"

// Preparer turns an extracted package into a directory the packer accepts
// and whose scripts install from the mirror.
type Preparer struct {
	cache    *mirror.Cache
	rewriter *rewrite.Rewriter
	logger   *log.Logger
}

// NewPreparer returns a Preparer mirroring payloads into cache.
func NewPreparer(cache *mirror.Cache, logger *log.Logger) *Preparer {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Preparer{
		cache:    cache,
		rewriter: rewrite.New(cache, logger),
		logger:   logger,
	}
}

// Prepare removes archive bookkeeping from dir and rewrites the scripts in
// its tools directory. Failing to remove bookkeeping is logged, not
// returned; a package without a tools directory is packed as is.
func (p *Preparer) Prepare(ctx context.Context, dir string) (rewrite.Stats, error) {
	for _, name := range []string{nupkg.RelsDir, nupkg.PackageDir, nupkg.ContentTypesFile} {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			p.logger.Warn("cleanup failed", "err", errors.Wrap(errors.ErrCodeCleanup, err, "remove %s", name))
		}
	}

	if err := p.cache.EnsureDir(); err != nil {
		return rewrite.Stats{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "create downloads directory")
	}

	tools := filepath.Join(dir, ToolsDir)
	if info, err := os.Stat(tools); err != nil || !info.IsDir() {
		p.logger.Warn("package has no tools directory", "dir", dir)
		return rewrite.Stats{}, nil
	}
	return p.rewriter.RewriteDir(ctx, tools)
}
