// Package nupkg reads and mirrors .nupkg archives.
//
// A .nupkg is a ZIP (OPC) container holding the package's .nuspec manifest,
// its tools/ scripts and OPC bookkeeping (_rels/, package/,
// [Content_Types].xml). Rebuilding an archive is left to the external packer;
// this package only extracts and copies.
package nupkg

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/chocorepack/pkg/errors"
)

// Extension is the file extension of package archives.
const Extension = ".nupkg"

// OPC bookkeeping entries that are not part of the package payload.
const (
	RelsDir          = "_rels"
	PackageDir       = "package"
	ContentTypesFile = "[Content_Types].xml"
)

// FileName returns the canonical archive name "{id}.{version}.nupkg".
func FileName(id, version string) string {
	return id + "." + version + Extension
}

// Extract unpacks the archive at src into destDir, creating it if needed.
//
// Entries that would land outside destDir are rejected with an
// ARCHIVE_INVALID error. Extraction stops early when ctx is cancelled.
func Extract(ctx context.Context, src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArchive, err, "open %s", filepath.Base(src))
	}
	defer r.Close()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractEntry(f, absDest); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, absDest string) error {
	destPath := filepath.Join(absDest, filepath.FromSlash(f.Name))

	// Validate path doesn't escape destination
	rel, err := filepath.Rel(absDest, destPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New(errors.ErrCodeInvalidArchive, "invalid path in archive: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArchive, err, "open entry %s", f.Name)
	}
	defer rc.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// Copy mirrors the archive at src to dst byte for byte. The copy is written
// next to dst and renamed into place, so dst never holds a partial archive.
func Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
