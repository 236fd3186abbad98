package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matzehuels/chocorepack/internal/cli"
	apperrors "github.com/matzehuels/chocorepack/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130) // Standard shell convention for SIGINT
		}
		fmt.Fprintln(os.Stderr, apperrors.UserMessage(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var verbose bool

	c := cli.New(os.Stderr, cli.LogInfo)
	root := c.RootCommand()

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// The level is only known once flags are parsed.
	originalPreRun := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := cli.LogInfo
		if verbose {
			level = cli.LogDebug
		}
		c.SetLogLevel(level)

		if originalPreRun != nil {
			return originalPreRun(cmd, args)
		}
		return nil
	}

	return root.ExecuteContext(ctx)
}
