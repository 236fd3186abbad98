// Package cli implements the chocorepack command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/chocorepack/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "chocorepack"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configFile string
	output     string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "chocorepack mirrors Chocolatey packages for offline installs",
		Long: `chocorepack downloads Chocolatey packages, rewrites their install scripts to
use locally mirrored installers, and repacks them into an internal repository,
following every declared dependency.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default: "+defaultConfigHint()+")")
	flags.StringVarP(&c.output, "output", "o", "", `output repository directory (default: $CHOCO_REPOS_LOCAL, \\%COMPUTERNAME%\choco_repos or ".")`)

	root.AddCommand(c.repackCommand())
	root.AddCommand(c.downloadsCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Paths
// =============================================================================

// configDir returns the configuration directory: %APPDATA% on Windows,
// $XDG_CONFIG_HOME (default ~/.config) elsewhere.
func configDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

func defaultConfigHint() string {
	if dir, err := configDir(); err == nil {
		return filepath.Join(dir, configFileName)
	}
	return configFileName
}
