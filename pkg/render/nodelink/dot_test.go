package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/chocorepack/pkg/dag"
)

func sampleGraph() *dag.DAG {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "sample@1.0.0", Label: "sample 1.0.0", Meta: dag.Metadata{OutcomeKey: "packed"}})
	_ = g.AddNode(dag.Node{ID: "dep1@2.0.0", Label: "dep1 2.0.0", Row: 1, Meta: dag.Metadata{OutcomeKey: "pack-failed"}})
	_ = g.AddEdge(dag.Edge{From: "sample@1.0.0", To: "dep1@2.0.0"})
	_ = g.AddEdge(dag.Edge{From: "dep1@2.0.0", To: "sample@1.0.0"})
	return g
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sampleGraph(), Options{})

	for _, want := range []string{
		"digraph G {",
		`"sample@1.0.0" [label="sample 1.0.0", fillcolor=palegreen];`,
		`"dep1@2.0.0" [label="dep1 2.0.0", fillcolor=lightpink];`,
		`"sample@1.0.0" -> "dep1@2.0.0";`,
		`"dep1@2.0.0" -> "sample@1.0.0" [style=dashed, constraint=false];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q\n%s", want, dot)
		}
	}
}

func TestToDOT_Detailed(t *testing.T) {
	dot := ToDOT(sampleGraph(), Options{Detailed: true})
	if !strings.Contains(dot, `label="dep1 2.0.0\ndepth: 1\noutcome: pack-failed"`) {
		t.Errorf("detailed label missing:\n%s", dot)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 100.25 200.00" xmlns="x"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.25 200.00" width="100" height="200"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox() =\n%s\nwant\n%s", got, want)
	}
	if out := normalizeViewBox([]byte("<svg/>")); string(out) != "<svg/>" {
		t.Errorf("svg without viewBox changed: %s", out)
	}
}
