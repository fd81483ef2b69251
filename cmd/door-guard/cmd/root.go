package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/service/daemon"
	"github.com/tankwatch/tank-guard/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// simulate replaces the GPIO board with an in-memory one.
	simulate bool
	// skipInstanceCheck allows a second daemon on the same host.
	skipInstanceCheck bool

	// rootCmd represents the base command for running the door monitor.
	rootCmd = &cobra.Command{
		Use:   "door-guard",
		Short: "Monitor the fuel tank doors and drive the alarm relay.",
		Long: `Starts the door monitor for both fuel tank channels.

Door sensors are polled once per tick. Closed doors arm automatically after
the configured delay, an armed door that opens latches the alarm and switches
the siren relay on until an operator disarms the channel.

Operator commands are served over gRPC, status and metrics over HTTP.
Arm flags are persisted so a restart resumes the previous protection.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &daemon.Options{
				ConfigPath:        configPath,
				Simulate:          simulate,
				SkipInstanceCheck: skipInstanceCheck,
			}

			return daemon.Run(ctx, options)
		},
	}
)

// Execute runs the door-guard CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVar(&simulate, "simulate", false, "use an in-memory board instead of GPIO")
	rootCmd.Flags().BoolVar(&skipInstanceCheck, "skip-instance-check", false, "do not refuse to start when another daemon runs")
}
