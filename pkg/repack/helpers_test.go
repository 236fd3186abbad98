package repack

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/chocorepack/pkg/nupkg"
)

// testPkg describes an archive served by the fake registry.
type testPkg struct {
	id      string
	version string
	deps    [][2]string       // id, raw version attribute ("" for none)
	scripts map[string]string // tools/ file name -> content
	noSpec  bool              // omit the manifest
}

func (p testPkg) archive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	add("_rels/.rels", "<Relationships/>")
	add("package/services/metadata/core-properties/abc.psmdcp", "<coreProperties/>")
	add(nupkg.ContentTypesFile, "<Types/>")
	if !p.noSpec {
		add(p.id+".nuspec", p.nuspec())
	}
	for name, content := range p.scripts {
		add("tools/"+name, content)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (p testPkg) nuspec() string {
	var deps strings.Builder
	for _, d := range p.deps {
		if d[1] == "" {
			fmt.Fprintf(&deps, "      <dependency id=%q />\n", d[0])
		} else {
			fmt.Fprintf(&deps, "      <dependency id=%q version=%q />\n", d[0], d[1])
		}
	}
	return `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2015/06/nuspec.xsd">
  <metadata>
    <id>` + p.id + `</id>
    <version>` + p.version + `</version>
    <dependencies>
` + deps.String() + `    </dependencies>
  </metadata>
</package>`
}

// registry is a fake package endpoint plus installer file host.
type registry struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	archives map[string][]byte // "lower(id)/version" -> archive
	latest   map[string]string // lower(id) -> version
	files    map[string]string // "/files/..." -> content
	requests []string          // package requests as "id/version" ("" version for latest)
	fileHits []string
}

func newRegistry(t *testing.T, pkgs ...testPkg) *registry {
	t.Helper()
	reg := &registry{
		t:        t,
		archives: make(map[string][]byte),
		latest:   make(map[string]string),
		files:    make(map[string]string),
	}
	for _, p := range pkgs {
		reg.add(p)
	}
	reg.server = httptest.NewServer(http.HandlerFunc(reg.serve))
	t.Cleanup(reg.server.Close)
	return reg
}

func (r *registry) add(p testPkg) {
	key := strings.ToLower(p.id)
	r.archives[key+"/"+p.version] = p.archive(r.t)
	r.latest[key] = p.version
}

// file registers an installer payload and returns its URL.
func (r *registry) file(path, content string) string {
	r.files[path] = content
	return r.server.URL + path
}

func (r *registry) endpoint() string { return r.server.URL + "/api/v2/package/" }

func (r *registry) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if content, ok := r.files[req.URL.Path]; ok {
		r.fileHits = append(r.fileHits, req.URL.Path)
		w.Write([]byte(content))
		return
	}

	rest, ok := strings.CutPrefix(req.URL.Path, "/api/v2/package/")
	if !ok {
		http.NotFound(w, req)
		return
	}
	name, version, _ := strings.Cut(rest, "/")
	r.requests = append(r.requests, name+"/"+version)
	if version == "" {
		version = r.latest[strings.ToLower(name)]
	}
	data, ok := r.archives[strings.ToLower(name)+"/"+version]
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Write(data)
}

func (r *registry) packageRequests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

func (r *registry) hits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests) + len(r.fileHits)
}

// fakePacker records requests and writes "{id}.{version}.nupkg" into the
// output directory unless configured to fail.
type fakePacker struct {
	mu      sync.Mutex
	calls   []PackRequest
	scripts map[string]string // "id/file" -> script content at pack time
	fail    map[string]int    // id -> exit code

	leftovers []string // archive bookkeeping found in prepared dirs
}

func (p *fakePacker) Pack(_ context.Context, req PackRequest) (*PackResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.scripts == nil {
		p.scripts = make(map[string]string)
	}
	entries, _ := os.ReadDir(filepath.Join(req.Dir, ToolsDir))
	for _, e := range entries {
		data, _ := os.ReadFile(filepath.Join(req.Dir, ToolsDir, e.Name()))
		p.scripts[req.ID+"/"+e.Name()] = string(data)
	}

	for _, name := range []string{nupkg.RelsDir, nupkg.PackageDir, nupkg.ContentTypesFile} {
		if _, err := os.Stat(filepath.Join(req.Dir, name)); err == nil {
			p.leftovers = append(p.leftovers, req.ID+"/"+name)
		}
	}

	res := &PackResult{Command: []string{"fake", "pack", req.Manifest, "--out", req.OutputDir}}
	if code, ok := p.fail[req.ID]; ok {
		res.ExitCode = code
		res.Output = "pack failed"
		return res, nil
	}
	out := filepath.Join(req.OutputDir, nupkg.FileName(req.ID, req.Version))
	return res, os.WriteFile(out, []byte("packed "+req.ID), 0o644)
}

func (p *fakePacker) packed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for _, c := range p.calls {
		ids = append(ids, c.ID+"@"+c.Version)
	}
	return ids
}

// newTestRepacker wires a Repacker to reg and packer with an isolated work
// directory.
func newTestRepacker(t *testing.T, reg *registry, packer Packer, mutate ...func(*Config)) (*Repacker, string) {
	t.Helper()
	cfg := Config{
		OutputDir: filepath.Join(t.TempDir(), "repo"),
		Endpoint:  reg.endpoint(),
		WorkDir:   t.TempDir(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	r, err := New(cfg, WithPacker(packer), WithHTTPClient(reg.server.Client()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r, r.OutputDir()
}
