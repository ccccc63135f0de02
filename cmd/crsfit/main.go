// Command crsfit finds the coordinate reference system that best maps raw
// target coordinates onto known WGS84 positions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/litescript/crsfit/internal/config"
	"github.com/litescript/crsfit/internal/logging"
	"github.com/litescript/crsfit/internal/version"
)

// Global flags
var (
	configPath string
	logLevel   string
)

// app carries what every subcommand needs after the root pre-run.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
}

func main() {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "crsfit",
		Short:         "Best-fit coordinate reference system detection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			a.cfg = cfg
			a.logger = logging.New(cfg.LogLevel())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: crsfit.yaml in . or ./configs)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newFitCmd(a),
		newDetectCmd(a),
		newRotatedCmd(a),
		newSampleCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crsfit version",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crsfit v%s\n", version.Version)
		},
	}
}
