package rewrite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/chocorepack/pkg/errors"
	"github.com/matzehuels/chocorepack/pkg/httputil"
	"github.com/matzehuels/chocorepack/pkg/integrations"
	"github.com/matzehuels/chocorepack/pkg/mirror"
)

// payloadServer serves "payload:<path>" for every path except /missing/*.
func payloadServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasPrefix(r.URL.Path, "/missing/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("payload:" + r.URL.Path))
	}))
	t.Cleanup(server.Close)
	return server
}

func newRewriter(t *testing.T, server *httptest.Server) (*Rewriter, *mirror.Cache) {
	t.Helper()
	client := integrations.NewClient(nil, httputil.Policy{}).WithHTTPClient(server.Client())
	cache := mirror.New(filepath.Join(t.TempDir(), mirror.DirName), client)
	if err := cache.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	return New(cache, nil), cache
}

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRewriteFile(t *testing.T) {
	var hits atomic.Int32
	server := payloadServer(t, &hits)
	rw, cache := newRewriter(t, server)

	url := server.URL + "/dl/setup.exe"
	script := "$ErrorActionPreference = 'Stop'\r\n" +
		"$url = '" + url + "'\r\n" +
		"Install-ChocolateyPackage $name 'exe' $silent \"" + url + "\"\n" +
		"Write-Host done"
	p := writeScript(t, t.TempDir(), "chocolateyInstall.ps1", script)

	stats, err := rw.RewriteFile(context.Background(), p)
	if err != nil {
		t.Fatalf("RewriteFile() error: %v", err)
	}

	local, err := cache.Path(url)
	if err != nil {
		t.Fatal(err)
	}
	want := "$ErrorActionPreference = 'Stop'\r\n" +
		"$url = '" + local + "'\r\n" +
		"Install-ChocolateyPackage $name 'exe' $silent \"" + local + "\"\n" +
		"Write-Host done"
	if got := readFile(t, p); got != want {
		t.Errorf("rewritten script =\n%q\nwant\n%q", got, want)
	}
	if got := readFile(t, local); got != "payload:/dl/setup.exe" {
		t.Errorf("mirrored payload = %q", got)
	}
	if stats != (Stats{Files: 1, URLs: 2, CacheHits: 1, Downloads: 1}) {
		t.Errorf("stats = %+v", stats)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestRewriteFile_ReplacesEveryOccurrenceOnLine(t *testing.T) {
	var hits atomic.Int32
	server := payloadServer(t, &hits)
	rw, cache := newRewriter(t, server)

	url := server.URL + "/a/tool.msi"
	p := writeScript(t, t.TempDir(), "x.ps1", "'"+url+"' # "+url+"\n")
	if _, err := rw.RewriteFile(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	local, _ := cache.Path(url)
	if got, want := readFile(t, p), "'"+local+"' # "+local+"\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewriteFile_LeavesNonMatchingLines(t *testing.T) {
	var hits atomic.Int32
	server := payloadServer(t, &hits)
	rw, _ := newRewriter(t, server)

	content := "# see https://chocolatey.org for docs\n$x = 1\n$y = '" + server.URL + "/'\n"
	p := writeScript(t, t.TempDir(), "x.ps1", content)

	stats, err := rw.RewriteFile(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, p); got != content {
		t.Errorf("script changed: %q", got)
	}
	if stats.URLs != 0 || hits.Load() != 0 {
		t.Errorf("stats = %+v, hits = %d; want no URLs fetched", stats, hits.Load())
	}
}

func TestRewriteFile_DownloadFailureKeepsOriginal(t *testing.T) {
	var hits atomic.Int32
	server := payloadServer(t, &hits)
	rw, _ := newRewriter(t, server)

	dir := t.TempDir()
	content := "$url = '" + server.URL + "/missing/setup.exe'\n"
	p := writeScript(t, dir, "chocolateyInstall.ps1", content)

	_, err := rw.RewriteFile(context.Background(), p)
	if !errors.Is(err, errors.ErrCodeDownload) {
		t.Fatalf("RewriteFile() error = %v, want %s", err, errors.ErrCodeDownload)
	}
	if got := readFile(t, p); got != content {
		t.Errorf("original modified: %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestRewriteDir(t *testing.T) {
	var hits atomic.Int32
	server := payloadServer(t, &hits)
	rw, cache := newRewriter(t, server)

	dir := t.TempDir()
	url := server.URL + "/pkg/installer.exe"
	install := writeScript(t, dir, "chocolateyInstall.PS1", "'"+url+"'\n")
	other := writeScript(t, dir, "readme.txt", "'"+url+"'\n")
	if err := os.Mkdir(filepath.Join(dir, "nested.ps1"), 0o755); err != nil {
		t.Fatal(err)
	}
	uninstall := writeScript(t, dir, "chocolateyUninstall.ps1", "'"+url+"'\n")

	stats, err := rw.RewriteDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("RewriteDir() error: %v", err)
	}
	if stats != (Stats{Files: 2, URLs: 2, CacheHits: 1, Downloads: 1}) {
		t.Errorf("stats = %+v", stats)
	}

	local, _ := cache.Path(url)
	for _, p := range []string{install, uninstall} {
		if got := readFile(t, p); got != "'"+local+"'\n" {
			t.Errorf("%s = %q", filepath.Base(p), got)
		}
	}
	if got := readFile(t, other); got != "'"+url+"'\n" {
		t.Errorf("non-script rewritten: %q", got)
	}
}

func TestIsScript(t *testing.T) {
	tests := map[string]bool{
		"chocolateyInstall.ps1": true,
		"TOOLS.PS1":             true,
		"setup.ps1.bak":         false,
		"install.psm1":          false,
	}
	for name, want := range tests {
		if got := IsScript(name); got != want {
			t.Errorf("IsScript(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRewriteFileTwoURLsOnOneLine(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Write([]byte("payload"))
	}))
	t.Cleanup(server.Close)
	rw, cache := newRewriter(t, server)

	first := server.URL + "/dl/setup32.exe"
	second := server.URL + "/dl/setup64.exe"
	p := writeScript(t, t.TempDir(), "chocolateyInstall.ps1",
		"Install-ChocolateyPackage $name 'exe' $silent '"+first+"' '"+second+"'\n")

	stats, err := rw.RewriteFile(context.Background(), p)
	if err != nil {
		t.Fatalf("RewriteFile() error: %v", err)
	}

	// The match runs from the first URL's opening quote to the last quote.
	combined := first + "' '" + second
	local, err := cache.Path(combined)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(local) != "setup64.exe" {
		t.Errorf("mirrored as %s, want setup64.exe", filepath.Base(local))
	}
	want := "Install-ChocolateyPackage $name 'exe' $silent '" + local + "'\n"
	if got := readFile(t, p); got != want {
		t.Errorf("rewritten line:\n got %q\nwant %q", got, want)
	}
	if stats.URLs != 1 || stats.Downloads != 1 {
		t.Errorf("stats = %+v, want one URL downloaded once", stats)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || !strings.Contains(paths[0], "setup32.exe") || !strings.Contains(paths[0], "setup64.exe") {
		t.Errorf("requested paths = %q, want a single combined request", paths)
	}
}
