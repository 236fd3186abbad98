package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/chocorepack/pkg/dag"
	"github.com/matzehuels/chocorepack/pkg/errors"
	"github.com/matzehuels/chocorepack/pkg/integrations"
	"github.com/matzehuels/chocorepack/pkg/integrations/chocolatey"
	"github.com/matzehuels/chocorepack/pkg/render/nodelink"
	"github.com/matzehuels/chocorepack/pkg/repack"
)

// repackOpts holds the flags of the repack command that are not settings.
type repackOpts struct {
	names    []string // packages given with -n, name or name==version
	graph    string   // dependency graph output, .dot or .svg
	report   string   // run report output, .toml
	detailed bool     // include outcome metadata in graph labels
}

// repackCommand creates the repack command.
func (c *CLI) repackCommand() *cobra.Command {
	opts := &repackOpts{}

	cmd := &cobra.Command{
		Use:   "repack [package[==version]...]",
		Short: "Repack packages and their dependencies for internal use",
		Long: `Repack downloads each package from the registry, mirrors every installer its
tools/*.ps1 scripts download, rewrites the scripts to use the mirrored copies,
and packs the result into the output directory as {id}.{version}.nupkg.

Dependencies are followed depth first. Packages whose archive already exists
in the output directory are skipped, so repeated runs only do new work.`,
		Example: `  # Repack the latest googlechrome into the default repository
  chocorepack repack googlechrome

  # Pin a version and write into a local directory
  chocorepack repack -n git==2.44.0 -o ./repo

  # Keep a record of the run
  chocorepack repack -n vscode --report run.toml --graph deps.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRepack(cmd, append(append([]string{}, opts.names...), args...), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.names, "name", "n", nil, "package(s) to repack, name or name==version")
	flags.StringVar(&opts.graph, "graph", "", "write the dependency graph (.dot or .svg)")
	flags.StringVar(&opts.report, "report", "", "write a run report (.toml)")
	flags.BoolVar(&opts.detailed, "detailed", false, "show outcome details in graph labels")

	// Settings flags default to zero values so that config file and
	// environment values apply when a flag is not given.
	flags.String("endpoint", "", "registry package endpoint (default: "+chocolatey.DefaultEndpoint+")")
	flags.String("packer", "", `packer command (default: "`+strings.Join(repack.DefaultPackCommand, " ")+`")`)
	flags.Int("retries", 0, "retry transient download failures this many times")
	flags.Duration("timeout", 0, "per-request timeout (default: "+integrations.DefaultTimeout.String()+")")
	flags.Bool("strict", false, "abort the run when a package fails to pack")
	flags.Bool("keep-workdirs", false, "keep temporary fetch and extract directories")
	flags.String("extension-marker", "", `name marker of packages copied without repacking (default: "`+repack.DefaultExtensionMarker+`")`)

	return cmd
}

func (c *CLI) runRepack(cmd *cobra.Command, names []string, opts *repackOpts) error {
	refs, err := parseRefs(names)
	if err != nil {
		return err
	}
	if err := validateGraphPath(opts.graph); err != nil {
		return err
	}

	s, cfgPath, err := loadSettings(c.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfgPath != "" {
		c.Logger.Debug("loaded config", "path", cfgPath)
	}

	cfg := s.repackConfig()
	cfg.Logger = c.Logger
	r, err := repack.New(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	prog := newProgress(c.Logger)

	rep, runErr := r.Repack(ctx, refs...)
	if runErr != nil {
		prog.failed(fmt.Sprintf("Run stopped after %d packages", len(rep.Entries)))
	} else {
		prog.done(fmt.Sprintf("Handled %d packages", len(rep.Entries)))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, StyleTitle.Render("Summary"))
	printSummary(out, rep)
	printKeyValue(out, "output", r.OutputDir())
	printKeyValue(out, "run", rep.RunID)

	// Artifacts describe partial runs too.
	artifactCtx := context.WithoutCancel(ctx)
	if opts.report != "" {
		if err := rep.WriteFile(opts.report); err != nil {
			c.Logger.Error("write report", "path", opts.report, "err", err)
		} else {
			printFile(out, opts.report)
		}
	}
	if opts.graph != "" {
		if err := writeGraph(artifactCtx, cmd.ErrOrStderr(), opts.graph, rep.Graph, opts.detailed); err != nil {
			c.Logger.Error("write graph", "path", opts.graph, "err", err)
		} else {
			printFile(out, opts.graph)
		}
	}

	if runErr != nil {
		return runErr
	}
	if len(rep.Failed()) > 0 {
		printNextStep(out, "Inspect failures", "chocorepack repack -v -n "+rep.Failed()[0].Name)
	}
	return nil
}

// parseRefs parses package arguments. At least one is required.
func parseRefs(names []string) ([]repack.Ref, error) {
	var refs []repack.Ref
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		ref, err := repack.ParseRef(n)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no packages given (use -n name or name==version)")
	}
	return refs, nil
}

// validateGraphPath checks that a graph output path has a supported extension.
func validateGraphPath(path string) error {
	if path == "" {
		return nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".svg":
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "invalid graph file %s (must end in .dot or .svg)", path)
}

// writeGraph writes g as DOT source or, for .svg paths, rendered with
// Graphviz. Rendering shows a spinner on w.
func writeGraph(ctx context.Context, w io.Writer, path string, g *dag.DAG, detailed bool) error {
	data := []byte(nodelink.ToDOT(g, nodelink.Options{Detailed: detailed}))

	if strings.EqualFold(filepath.Ext(path), ".svg") {
		spin := newSpinner(ctx, w, "Rendering dependency graph...")
		spin.Start()
		svg, err := nodelink.RenderSVG(ctx, string(data))
		spin.Stop()
		if err != nil {
			return err
		}
		data = svg
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
