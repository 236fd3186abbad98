// Package nodelink renders the dependency graph of a repack run as a
// node-link diagram.
//
// Convert the graph to DOT, then optionally render it to SVG in-process:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Nodes are boxes filled by repack outcome (the "outcome" metadata key):
// packed green, mirrored blue, failed pink, missing metadata yellow. Edges
// that close a dependency cycle are dashed.
//
// The DOT source can also be saved and processed with external Graphviz
// tools. SVG rendering uses [github.com/goccy/go-graphviz].
package nodelink
