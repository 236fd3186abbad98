// Package dag records the dependency graph walked by a repack run.
//
// Each node is a package (keyed by its resolved identity), each edge a
// dependency declared in a manifest. Nodes and edges keep insertion order,
// so the graph of a run is deterministic and renders the same way twice.
//
// Despite the name the graph may contain cycles: Chocolatey manifests can
// declare mutual dependencies, and the run records every declared edge even
// when it leads back to a package that was already handled. Use
// [DAG.BackEdges] to find the edges that close a cycle and [DAG.Validate] to
// check for acyclicity.
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "git@2.44.0", Label: "git 2.44.0"})
//	g.AddNode(dag.Node{ID: "git.install@2.44.0", Row: 1})
//	g.AddEdge(dag.Edge{From: "git@2.44.0", To: "git.install@2.44.0"})
package dag
