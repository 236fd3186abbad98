package dag_test

import (
	"fmt"

	"github.com/matzehuels/chocorepack/pkg/dag"
)

func ExampleDAG_basic() {
	// A meta package pulling in its installer package.
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "git", Row: 0})
	_ = g.AddNode(dag.Node{ID: "git.install", Row: 1})
	_ = g.AddNode(dag.Node{ID: "chocolatey-core.extension", Row: 2})
	_ = g.AddEdge(dag.Edge{From: "git", To: "git.install"})
	_ = g.AddEdge(dag.Edge{From: "git.install", To: "chocolatey-core.extension"})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	fmt.Println("Rows:", g.RowIDs())
	// Output:
	// Nodes: 3
	// Edges: 2
	// Rows: [0 1 2]
}

func ExampleDAG_traversal() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "app", Row: 0})
	_ = g.AddNode(dag.Node{ID: "vcredist", Row: 1})
	_ = g.AddNode(dag.Node{ID: "dotnet", Row: 1})
	_ = g.AddEdge(dag.Edge{From: "app", To: "vcredist"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "dotnet"})

	fmt.Println("Children of app:", g.Children("app"))
	fmt.Println("Parents of dotnet:", g.Parents("dotnet"))
	fmt.Println("Out-degree of app:", g.OutDegree("app"))
	// Output:
	// Children of app: [vcredist dotnet]
	// Parents of dotnet: [app]
	// Out-degree of app: 2
}

func ExampleDAG_BackEdges() {
	// a → b → a is declared by the manifests; the run still terminates and
	// records both edges.
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "a"})
	_ = g.AddNode(dag.Node{ID: "b", Row: 1})
	_ = g.AddEdge(dag.Edge{From: "a", To: "b"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "a"})

	for _, e := range g.BackEdges() {
		fmt.Printf("%s -> %s\n", e.From, e.To)
	}
	fmt.Println(g.Validate())
	// Output:
	// b -> a
	// graph contains a cycle
}
