package repack

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/chocorepack/pkg/dag"
	"github.com/matzehuels/chocorepack/pkg/errors"
	"github.com/matzehuels/chocorepack/pkg/httputil"
	"github.com/matzehuels/chocorepack/pkg/integrations"
	"github.com/matzehuels/chocorepack/pkg/integrations/chocolatey"
	"github.com/matzehuels/chocorepack/pkg/mirror"
	"github.com/matzehuels/chocorepack/pkg/nupkg"
	"github.com/matzehuels/chocorepack/pkg/nuspec"
	"github.com/matzehuels/chocorepack/pkg/observability"
	"github.com/matzehuels/chocorepack/pkg/report"
)

// latest stands in for an absent version in package keys.
const latest = "latest"

// Fetcher downloads a package archive into dir and returns its path. An
// empty version asks for the latest release. [chocolatey.Client]
// implements it.
type Fetcher interface {
	FetchPackage(ctx context.Context, name, version, dir string) (string, error)
}

// Ref names a package to repack. An empty Version means the latest release.
type Ref struct {
	Name    string
	Version string
}

// ParseRef parses "name" or "name==version".
func ParseRef(s string) (Ref, error) {
	name, version, _ := strings.Cut(strings.TrimSpace(s), "==")
	ref := Ref{Name: strings.TrimSpace(name), Version: strings.TrimSpace(version)}
	if err := errors.ValidatePackageID(ref.Name); err != nil {
		return Ref{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid package reference %q", s)
	}
	if strings.Contains(ref.Version, "==") {
		return Ref{}, errors.New(errors.ErrCodeInvalidInput, "invalid package reference %q", s)
	}
	if err := errors.ValidateVersion(ref.Version); err != nil {
		return Ref{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid package reference %q", s)
	}
	return ref, nil
}

func (r Ref) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "==" + r.Version
}

// Key identifies a request: lower-cased name and version, or "latest".
func (r Ref) Key() string {
	v := r.Version
	if v == "" {
		v = latest
	}
	return strings.ToLower(r.Name) + "@" + v
}

func (r Ref) versionOrLatest() string {
	if r.Version == "" {
		return latest
	}
	return r.Version
}

// Repacker mirrors packages and their dependencies into an output directory.
// A Repacker runs one Repack at a time.
type Repacker struct {
	cfg    Config
	outDir string // absolute OutputDir
	log    *log.Logger

	fetcher    Fetcher
	packer     Packer
	downloader mirror.Downloader
	httpClient *http.Client

	cache    *mirror.Cache
	preparer *Preparer
}

// New creates a Repacker. Collaborators not supplied through opts are built
// from cfg: a Chocolatey registry client, an HTTP downloader for installer
// payloads and a [CommandPacker].
func New(cfg Config, opts ...Option) (*Repacker, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	outDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve output directory")
	}

	r := &Repacker{cfg: cfg, outDir: outDir, log: cfg.Logger}
	for _, opt := range opts {
		opt(r)
	}

	retry := httputil.Policy{
		Attempts: cfg.Retries + 1,
		OnRetry: func(attempt int, err error) {
			r.log.Warn("retrying", "attempt", attempt, "err", err)
		},
	}
	hc := r.httpClient
	if hc == nil {
		hc = integrations.NewHTTPClient(cfg.Timeout)
	}
	if r.fetcher == nil {
		c := chocolatey.NewClient(cfg.Endpoint, retry)
		c.Client = c.Client.WithHTTPClient(hc)
		r.fetcher = c
	}
	if r.downloader == nil {
		r.downloader = integrations.NewClient(nil, retry).WithHTTPClient(hc)
	}
	if r.packer == nil {
		r.packer = CommandPacker{Command: cfg.PackerCommand}
	}

	r.cache = mirror.New(filepath.Join(outDir, mirror.DirName), r.downloader)
	r.preparer = NewPreparer(r.cache, r.log)
	return r, nil
}

// OutputDir returns the absolute output directory.
func (r *Repacker) OutputDir() string { return r.outDir }

// Mirror returns the installer download cache under the output directory.
func (r *Repacker) Mirror() *mirror.Cache { return r.cache }

// frame is one worklist item: a package request, or the completion marker
// of a package whose dependencies were pushed above it.
type frame struct {
	ref    Ref
	pin    string // bracket-stripped range of a range dependency; ref.Version is then empty
	parent string // graph node of the dependent; "" for requested packages
	from   string // dependent's name, for the report
	depth  int
	done   string // set on completion markers: the finished package
}

// requested is the version looked for in the output directory before
// fetching: the pinned version, or the stripped range of a range dependency.
func (f frame) requested() string {
	if f.ref.Version != "" {
		return f.ref.Version
	}
	return f.pin
}

// run is the state of one Repack call.
type run struct {
	rep *report.Report
	// visited maps request and resolved keys to the graph node that
	// handled them.
	visited map[string]string
}

// Repack mirrors each requested package and, depth first in declaration
// order, everything it depends on.
//
// A package whose output archive already exists is not fetched again. Each
// package is handled at most once per run, so cyclic dependencies
// terminate. Download failures (registry or installer payloads) abort the
// run; so does a failed pack when StrictPack is set. The report is returned
// in every case and covers the packages handled before the failure.
func (r *Repacker) Repack(ctx context.Context, refs ...Ref) (*report.Report, error) {
	st := &run{rep: report.New(r.outDir), visited: make(map[string]string)}

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		err = errors.Wrap(errors.ErrCodeInvalidPath, err, "create output directory")
		st.rep.Finish(err)
		return st.rep, err
	}

	stack := make([]frame, 0, len(refs))
	for i := len(refs) - 1; i >= 0; i-- {
		stack = append(stack, frame{ref: refs[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.done != "" {
			r.log.Info("done", "package", f.done)
			continue
		}
		if err := ctx.Err(); err != nil {
			st.rep.Finish(err)
			return st.rep, err
		}

		deps, err := r.handle(ctx, st, f)
		if err != nil {
			st.rep.Finish(err)
			return st.rep, err
		}
		if deps == nil {
			continue
		}
		stack = append(stack, frame{done: f.ref.Name})
		for i := len(deps) - 1; i >= 0; i-- {
			stack = append(stack, deps[i])
		}
	}

	st.rep.Finish(nil)
	return st.rep, nil
}

// handle processes one request and returns the frames of its dependencies.
// A nil slice means the package was not expanded.
func (r *Repacker) handle(ctx context.Context, st *run, f frame) (deps []frame, err error) {
	start := time.Now()
	hooks := observability.Repack()
	hooks.OnPackageStart(ctx, f.ref.Name, f.ref.Version)

	entry := report.Entry{
		Name:      f.ref.Name,
		Requested: f.requested(),
		Parent:    f.from,
		Depth:     f.depth,
	}
	defer func() {
		entry.Duration = time.Since(start)
		if err != nil {
			entry.Error = errors.UserMessage(err)
		}
		if entry.Outcome != "" || err != nil {
			st.rep.Add(entry)
		}
		hooks.OnPackageComplete(ctx, entry.Name, entry.Version, string(entry.Outcome), entry.Duration, err)
	}()

	reqKey := f.ref.Key()
	if node, ok := st.visited[reqKey]; ok {
		r.log.Debug("already handled", "package", f.ref.String())
		entry.Outcome = report.OutcomeDuplicate
		r.link(st, f, node)
		return nil, nil
	}

	if err := errors.ValidatePackageID(f.ref.Name); err != nil {
		r.log.Warn("skipping invalid dependency", "package", f.ref.Name, "err", err)
		entry.Outcome = report.OutcomeNoMetadata
		entry.Error = errors.UserMessage(err)
		r.addNode(st, f, reqKey, f.ref.Name, entry.Outcome)
		return nil, nil
	}

	r.log.Info("repacking", "package", f.ref.Name, "version", f.ref.versionOrLatest())

	if v := f.requested(); v != "" && errors.ValidateVersion(v) == nil {
		out := filepath.Join(r.outDir, nupkg.FileName(f.ref.Name, v))
		if fileExists(out) {
			r.log.Info("already repacked", "file", filepath.Base(out))
			entry.Version = v
			entry.Output = out
			entry.Outcome = report.OutcomeExists
			node := resolvedKey(f.ref.Name, v)
			st.visited[node] = node
			r.addNode(st, f, node, f.ref.Name+" "+v, entry.Outcome)
			return nil, nil
		}
	}

	fetchDir, extractDir, err := r.workDirs()
	if err != nil {
		return nil, err
	}
	defer r.cleanup(fetchDir, extractDir)

	archive, err := r.fetcher.FetchPackage(ctx, f.ref.Name, f.ref.Version, fetchDir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		code := errors.ErrCodeDownload
		if stderrors.Is(err, integrations.ErrNotFound) {
			code = errors.ErrCodePackageNotFound
		}
		return nil, errors.Wrap(code, err, "fetch %s", f.ref.String())
	}
	if err := nupkg.Extract(ctx, archive, extractDir); err != nil {
		return nil, err
	}

	m, err := nuspec.Read(extractDir)
	if err != nil && !errors.Is(err, errors.ErrCodeInvalidManifest) {
		return nil, errors.Wrap(errors.ErrCodeInvalidArchive, err, "read manifest of %s", f.ref.String())
	}
	if err == nil && m != nil {
		err = validateManifest(m)
	}
	if err != nil || m == nil {
		r.log.Warn("no usable manifest, skipping", "package", f.ref.String(), "err", err)
		entry.Outcome = report.OutcomeNoMetadata
		if err != nil {
			entry.Error = errors.UserMessage(errors.Wrap(errors.ErrCodeMissingMetadata, err, "manifest"))
		}
		st.visited[reqKey] = reqKey
		r.addNode(st, f, reqKey, f.ref.String(), entry.Outcome)
		return nil, nil
	}

	entry.Name, entry.Version = m.ID, m.Version
	node := resolvedKey(m.ID, m.Version)
	if prev, ok := st.visited[node]; ok {
		r.log.Debug("already handled", "package", m.ID, "version", m.Version)
		st.visited[reqKey] = prev
		entry.Outcome = report.OutcomeDuplicate
		r.link(st, f, prev)
		return nil, nil
	}
	st.visited[reqKey] = node
	st.visited[node] = node

	out := filepath.Join(r.outDir, nupkg.FileName(m.ID, m.Version))
	entry.Output = out
	switch {
	case fileExists(out):
		r.log.Info("already repacked", "file", filepath.Base(out))
		entry.Outcome = report.OutcomeExists

	case strings.Contains(m.ID, r.cfg.ExtensionMarker):
		if err := nupkg.Copy(archive, out); err != nil {
			return nil, fmt.Errorf("mirror %s: %w", filepath.Base(out), err)
		}
		r.log.Info("mirrored", "file", filepath.Base(out))
		entry.Outcome = report.OutcomeMirrored

	default:
		stats, err := r.preparer.Prepare(ctx, extractDir)
		entry.URLs, entry.Downloads, entry.CacheHits = stats.URLs, stats.Downloads, stats.CacheHits
		if err != nil {
			return nil, err
		}
		if err := r.pack(ctx, m, extractDir, &entry); err != nil {
			return nil, err
		}
	}

	r.addNode(st, f, node, m.ID+" "+m.Version, entry.Outcome)

	deps = make([]frame, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		dep := frame{
			ref:    Ref{Name: d.ID, Version: d.Pin()},
			parent: node,
			from:   m.ID,
			depth:  f.depth + 1,
		}
		if d.IsRange() {
			r.log.Debug("range dependency, fetching latest", "package", d.ID, "range", d.Version)
			dep.ref.Version, dep.pin = "", d.Pin()
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// pack runs the packer and records the result in entry. Only a cancelled
// context or, with StrictPack, a failed pack is returned as an error.
func (r *Repacker) pack(ctx context.Context, m *nuspec.Manifest, dir string, entry *report.Entry) error {
	start := time.Now()
	res, err := r.packer.Pack(ctx, PackRequest{
		ID:        m.ID,
		Version:   m.Version,
		Dir:       dir,
		Manifest:  m.Path,
		OutputDir: r.outDir,
	})
	if res != nil {
		entry.Pack = &report.Pack{Command: res.Command, ExitCode: res.ExitCode, Output: res.Output}
		observability.Repack().OnPack(ctx, m.ID, m.Version, res.ExitCode, time.Since(start))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err == nil && res.OK() {
		r.log.Info("packed", "package", m.ID, "version", m.Version)
		entry.Outcome = report.OutcomePacked
		return nil
	}

	entry.Outcome = report.OutcomePackFailed
	if err == nil {
		code := -1
		if res != nil {
			code = res.ExitCode
		}
		err = errors.New(errors.ErrCodePackerFailed, "packer exited with status %d", code)
	}
	entry.Error = errors.UserMessage(err)
	r.log.Warn("pack failed", "package", m.ID, "version", m.Version, "err", err)
	if res != nil && res.Output != "" {
		r.log.Debug("packer output", "output", res.Output)
	}
	if r.cfg.StrictPack {
		if !errors.Is(err, errors.ErrCodePackerFailed) {
			err = errors.Wrap(errors.ErrCodePackerFailed, err, "pack %s %s", m.ID, m.Version)
		}
		return err
	}
	return nil
}

// addNode records a handled package in the run graph and links it to its
// dependent.
func (r *Repacker) addNode(st *run, f frame, id, label string, outcome report.Outcome) {
	g := st.rep.Graph
	if _, ok := g.Node(id); !ok {
		_ = g.AddNode(dag.Node{
			ID:    id,
			Label: label,
			Row:   f.depth,
			Meta:  dag.Metadata{"outcome": string(outcome)},
		})
	}
	r.link(st, f, id)
}

func (r *Repacker) link(st *run, f frame, id string) {
	if f.parent == "" {
		return
	}
	_ = st.rep.Graph.AddEdge(dag.Edge{From: f.parent, To: id})
}

func (r *Repacker) workDirs() (fetchDir, extractDir string, err error) {
	fetchDir, err = os.MkdirTemp(r.cfg.WorkDir, "chocorepack-fetch-*")
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeInternal, err, "create work directory")
	}
	extractDir, err = os.MkdirTemp(r.cfg.WorkDir, "chocorepack-pkg-*")
	if err != nil {
		os.RemoveAll(fetchDir)
		return "", "", errors.Wrap(errors.ErrCodeInternal, err, "create work directory")
	}
	return fetchDir, extractDir, nil
}

func (r *Repacker) cleanup(dirs ...string) {
	if r.cfg.KeepWorkDirs {
		r.log.Debug("keeping work directories", "dirs", dirs)
		return
	}
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			r.log.Warn("cleanup failed", "err", errors.Wrap(errors.ErrCodeCleanup, err, "remove %s", d))
		}
	}
}

func validateManifest(m *nuspec.Manifest) error {
	if err := errors.ValidatePackageID(m.ID); err != nil {
		return err
	}
	return errors.ValidateVersion(m.Version)
}

func resolvedKey(name, version string) string {
	return strings.ToLower(name) + "@" + version
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
