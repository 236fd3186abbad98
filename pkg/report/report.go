// Package report summarises a repack run: one entry per handled package, in
// the order packages were reached, plus run-level totals.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/matzehuels/chocorepack/pkg/dag"
)

// Outcome is what a run did with one package.
type Outcome string

const (
	// OutcomeExists means the repacked archive was already in the output
	// directory and nothing was done.
	OutcomeExists Outcome = "exists"
	// OutcomeMirrored means the original archive was copied unchanged
	// (extension packages).
	OutcomeMirrored Outcome = "mirrored"
	// OutcomePacked means the package was rewritten and repacked.
	OutcomePacked Outcome = "packed"
	// OutcomePackFailed means the packer ran but reported failure.
	OutcomePackFailed Outcome = "pack-failed"
	// OutcomeDuplicate means the package was already handled earlier in the
	// same run.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeNoMetadata means the fetched archive had no readable manifest;
	// its dependencies were not followed.
	OutcomeNoMetadata Outcome = "no-metadata"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{
	OutcomePacked, OutcomeMirrored, OutcomeExists,
	OutcomeDuplicate, OutcomePackFailed, OutcomeNoMetadata,
}

// Entry is one package handled by a run.
type Entry struct {
	Name      string        `toml:"name"`
	Version   string        `toml:"version,omitempty"`   // resolved version
	Requested string        `toml:"requested,omitempty"` // version asked for; empty means latest
	Parent    string        `toml:"parent,omitempty"`    // dependent that pulled this package in
	Depth     int           `toml:"depth"`
	Outcome   Outcome       `toml:"outcome"`
	Output    string        `toml:"output,omitempty"`
	Duration  time.Duration `toml:"duration_ns"`
	URLs      int           `toml:"urls,omitempty"`
	Downloads int           `toml:"downloads,omitempty"`
	CacheHits int           `toml:"cache_hits,omitempty"`
	Pack      *Pack         `toml:"pack,omitempty"`
	Error     string        `toml:"error,omitempty"`
}

// Pack records a packer invocation.
type Pack struct {
	Command  []string `toml:"command"`
	ExitCode int      `toml:"exit_code"`
	Output   string   `toml:"output,omitempty"`
}

// Report is the summary of one run.
type Report struct {
	RunID     string    `toml:"run_id"`
	OutputDir string    `toml:"output_dir"`
	Started   time.Time `toml:"started"`
	Finished  time.Time `toml:"finished"`
	Error     string    `toml:"error,omitempty"`
	Entries   []Entry   `toml:"package"`

	// Graph is the dependency graph walked by the run. It is not encoded.
	Graph *dag.DAG `toml:"-"`
}

// New starts a report for a run writing into outputDir, with an empty
// graph tagged with the run ID.
func New(outputDir string) *Report {
	id := uuid.NewString()
	return &Report{
		RunID:     id,
		OutputDir: outputDir,
		Started:   time.Now(),
		Graph:     dag.New(dag.Metadata{"run_id": id}),
	}
}

// Add appends an entry.
func (r *Report) Add(e Entry) { r.Entries = append(r.Entries, e) }

// Finish stamps the end time and records err, if any.
func (r *Report) Finish(err error) {
	r.Finished = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
}

// Count returns the number of entries with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Counts returns entry counts per outcome. Outcomes with no entries are
// omitted.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, e := range r.Entries {
		counts[e.Outcome]++
	}
	return counts
}

// Failed returns entries whose outcome needs attention.
func (r *Report) Failed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Outcome == OutcomePackFailed || e.Outcome == OutcomeNoMetadata {
			out = append(out, e)
		}
	}
	return out
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

// Encode writes the report as TOML.
func (r *Report) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(r)
}

// WriteFile writes the report as TOML to path, creating parent directories.
func (r *Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	return f.Close()
}

// Read decodes a TOML report from path.
func Read(path string) (*Report, error) {
	var r Report
	if _, err := toml.DecodeFile(path, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
