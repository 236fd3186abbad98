// Package pkg provides the libraries behind chocorepack, which mirrors
// Chocolatey packages into an internal repository for offline installs.
//
// # Overview
//
// A repack run fetches a package archive, mirrors every installer its
// install scripts download, rewrites the scripts to use the mirrored copies,
// and packs the result into the output directory. Declared dependencies are
// handled the same way, depth first.
//
//  1. [integrations] - HTTP clients (registry endpoint, installer downloads)
//  2. [nupkg] and [nuspec] - archive codec and manifest reader
//  3. [mirror] and [rewrite] - installer mirror and script rewriting
//  4. [repack] - preparation, packing and the orchestrator
//  5. [report], [dag] and [render/nodelink] - run summary and dependency graph
//
// # Data Flow
//
//	registry endpoint
//	         ↓
//	    [nupkg] Extract → [nuspec] Read
//	         ↓
//	    [repack] Prepare ([rewrite] + [mirror])
//	         ↓
//	    packer → {output}/{id}.{version}.nupkg
//	         ↓
//	    dependencies → back to the top
//
// # Quick Start
//
//	r, err := repack.New(repack.Config{OutputDir: `\\build01\choco_repos`})
//	if err != nil {
//	    return err
//	}
//	ref, _ := repack.ParseRef("git==2.44.0")
//	rep, err := r.Repack(ctx, ref)
//	fmt.Println(rep.Counts())
//
// [integrations]: github.com/matzehuels/chocorepack/pkg/integrations
// [nupkg]: github.com/matzehuels/chocorepack/pkg/nupkg
// [nuspec]: github.com/matzehuels/chocorepack/pkg/nuspec
// [mirror]: github.com/matzehuels/chocorepack/pkg/mirror
// [rewrite]: github.com/matzehuels/chocorepack/pkg/rewrite
// [repack]: github.com/matzehuels/chocorepack/pkg/repack
// [report]: github.com/matzehuels/chocorepack/pkg/report
// [dag]: github.com/matzehuels/chocorepack/pkg/dag
// [render/nodelink]: github.com/matzehuels/chocorepack/pkg/render/nodelink
package pkg
