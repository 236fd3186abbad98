package dag

import (
	"errors"
	"testing"
)

func TestAddNode(t *testing.T) {
	g := New(nil)
	if err := g.AddNode(Node{}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("AddNode(empty) = %v, want ErrInvalidNodeID", err)
	}
	if err := g.AddNode(Node{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(Node{ID: "a"}); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("AddNode(dup) = %v, want ErrDuplicateNodeID", err)
	}
	n, ok := g.Node("a")
	if !ok || n.Meta == nil {
		t.Errorf("Node(a) = %+v, %v; want node with non-nil Meta", n, ok)
	}
}

func TestAddEdge(t *testing.T) {
	g := New(nil)
	_ = g.AddNode(Node{ID: "a"})
	_ = g.AddNode(Node{ID: "b"})

	if err := g.AddEdge(Edge{From: "x", To: "b"}); !errors.Is(err, ErrUnknownSourceNode) {
		t.Errorf("AddEdge(unknown from) = %v", err)
	}
	if err := g.AddEdge(Edge{From: "a", To: "x"}); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("AddEdge(unknown to) = %v", err)
	}
	for range 2 {
		if err := g.AddEdge(Edge{From: "a", To: "b"}); err != nil {
			t.Fatal(err)
		}
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1 (duplicate edges collapse)", g.EdgeCount())
	}
	if !g.HasEdge("a", "b") || g.HasEdge("b", "a") {
		t.Error("HasEdge() mismatch")
	}
}

func TestNodesKeepInsertionOrder(t *testing.T) {
	g := New(nil)
	ids := []string{"zeta", "alpha", "mid"}
	for i, id := range ids {
		_ = g.AddNode(Node{ID: id, Row: i % 2})
	}
	for i, n := range g.Nodes() {
		if n.ID != ids[i] {
			t.Errorf("Nodes()[%d] = %s, want %s", i, n.ID, ids[i])
		}
	}
	row0 := g.NodesInRow(0)
	if len(row0) != 2 || row0[0].ID != "zeta" || row0[1].ID != "mid" {
		t.Errorf("NodesInRow(0) = %v", row0)
	}
}

func TestSourcesSinks(t *testing.T) {
	g := New(nil)
	for _, id := range []string{"app", "lib", "core"} {
		_ = g.AddNode(Node{ID: id})
	}
	_ = g.AddEdge(Edge{From: "app", To: "lib"})
	_ = g.AddEdge(Edge{From: "lib", To: "core"})

	if s := g.Sources(); len(s) != 1 || s[0].ID != "app" {
		t.Errorf("Sources() = %v", s)
	}
	if s := g.Sinks(); len(s) != 1 || s[0].ID != "core" {
		t.Errorf("Sinks() = %v", s)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestBackEdges(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		want  int
	}{
		{"diamond", [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}}, 0},
		{"self loop", [][2]string{{"a", "a"}}, 1},
		{"two cycle", [][2]string{{"a", "b"}, {"b", "a"}}, 1},
		{"cycle below root", [][2]string{{"r", "a"}, {"a", "b"}, {"b", "c"}, {"c", "a"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(nil)
			for _, e := range tt.edges {
				for _, id := range e {
					if _, ok := g.Node(id); !ok {
						_ = g.AddNode(Node{ID: id})
					}
				}
				_ = g.AddEdge(Edge{From: e[0], To: e[1]})
			}
			if got := len(g.BackEdges()); got != tt.want {
				t.Errorf("len(BackEdges()) = %d, want %d", got, tt.want)
			}
			wantErr := tt.want > 0
			if err := g.Validate(); (err != nil) != wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, wantErr)
			}
		})
	}
}

func TestDisplayLabel(t *testing.T) {
	if got := (Node{ID: "git@2.0"}).DisplayLabel(); got != "git@2.0" {
		t.Errorf("DisplayLabel() = %q", got)
	}
	if got := (Node{ID: "git@2.0", Label: "git 2.0"}).DisplayLabel(); got != "git 2.0" {
		t.Errorf("DisplayLabel() = %q", got)
	}
}
