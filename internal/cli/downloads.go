package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/chocorepack/pkg/mirror"
)

// downloadsCommand creates the command managing mirrored installers.
func (c *CLI) downloadsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "Manage installers mirrored into the output directory",
	}

	cmd.AddCommand(c.downloadsPathCommand())
	cmd.AddCommand(c.downloadsListCommand())
	cmd.AddCommand(c.downloadsClearCommand())

	return cmd
}

// downloadsPathCommand creates the "downloads path" subcommand.
func (c *CLI) downloadsPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the download mirror directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := c.mirror(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cache.Dir())
			return nil
		},
	}
}

// downloadsListCommand creates the "downloads list" subcommand.
func (c *CLI) downloadsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List mirrored installers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := c.mirror(cmd)
			if err != nil {
				return err
			}
			entries, err := cache.Entries()
			if err != nil {
				return fmt.Errorf("list %s: %w", cache.Dir(), err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				printInfo(out, "No mirrored downloads")
				printDetail(out, "Directory: %s", cache.Dir())
				return nil
			}

			var total int64
			for _, e := range entries {
				total += e.Size
				printKeyValue(out, formatBytes(e.Size), e.Name+" "+StyleDim.Render(e.ModTime.Format("2006-01-02 15:04")))
			}
			printDetail(out, "%d files, %s in %s", len(entries), formatBytes(total), cache.Dir())
			return nil
		},
	}
}

// downloadsClearCommand creates the "downloads clear" subcommand.
func (c *CLI) downloadsClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all mirrored installers",
		Long: `Remove all mirrored installers. Packages already repacked keep pointing at
the removed files; repack them again after deleting their archives.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := c.mirror(cmd)
			if err != nil {
				return err
			}
			count, err := cache.Clear()
			if err != nil {
				return fmt.Errorf("clear %s: %w", cache.Dir(), err)
			}

			out := cmd.OutOrStdout()
			if count == 0 {
				printInfo(out, "Mirror is empty")
				return nil
			}
			printSuccess(out, "Removed %d mirrored downloads", count)
			printDetail(out, "Directory: %s", cache.Dir())
			return nil
		},
	}
}

// mirror opens the download mirror of the configured output directory.
func (c *CLI) mirror(cmd *cobra.Command) (*mirror.Cache, error) {
	s, _, err := loadSettings(c.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(filepath.Join(s.Output, mirror.DirName))
	if err != nil {
		return nil, err
	}
	return mirror.New(dir, nil), nil
}

// formatBytes renders a size with a binary unit, e.g. "1.5 MiB".
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
