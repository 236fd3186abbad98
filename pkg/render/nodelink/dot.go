package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/chocorepack/pkg/dag"
)

// OutcomeKey is the node metadata key holding a package's repack outcome.
// Nodes are filled according to its value.
const OutcomeKey = "outcome"

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes all node metadata in labels.
	// When false, only the display label is shown.
	Detailed bool
}

var outcomeFill = map[string]string{
	"packed":      "palegreen",
	"mirrored":    "lightblue",
	"exists":      "white",
	"pack-failed": "lightpink",
	"no-metadata": "lightyellow",
}

// ToDOT converts a dependency graph to Graphviz DOT source. Nodes are ranked
// by discovery depth; edges that close a cycle are drawn dashed and do not
// constrain the ranking.
func ToDOT(g *dag.DAG, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		label := fmtLabel(*n, opts.Detailed)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(*n, label), ", "))
	}

	back := make(map[[2]string]bool)
	for _, e := range g.BackEdges() {
		back[[2]string{e.From, e.To}] = true
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if back[[2]string{e.From, e.To}] {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, constraint=false];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n dag.Node, detailed bool) string {
	if !detailed {
		return n.DisplayLabel()
	}

	parts := []string{fmt.Sprintf("depth: %d", n.Row)}
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}

	return n.DisplayLabel() + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(n dag.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	outcome, _ := n.Meta[OutcomeKey].(string)
	if fill, ok := outcomeFill[outcome]; ok {
		attrs = append(attrs, "fillcolor="+fill)
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
