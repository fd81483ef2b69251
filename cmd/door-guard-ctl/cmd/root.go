package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/service/ctl"
	"github.com/tankwatch/tank-guard/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// address overrides the daemon gRPC address.
	address string
	// operator overrides the detected user name.
	operator string
	// wait keeps retrying while the daemon is unreachable.
	wait bool

	// rootCmd groups the operator commands.
	rootCmd = &cobra.Command{
		Use:   "door-guard-ctl",
		Short: "Control a running door-guard daemon.",
		Long: `Sends operator commands to the door-guard daemon.

The daemon address is loaded from the configuration file unless --address is set.
Every command is attributed to the current user unless --operator is set.`,
	}

	armCmd = &cobra.Command{
		Use:   "arm <channel>",
		Short: "Arm a channel.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runChannel(c, ctl.ActionArm, args[0])
		},
	}

	disarmCmd = &cobra.Command{
		Use:   "disarm <channel>",
		Short: "Disarm a channel and silence its alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runChannel(c, ctl.ActionDisarm, args[0])
		},
	}

	suspendCmd = &cobra.Command{
		Use:   "suspend",
		Short: "Suspend automatic arming until the next daily reset.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return run(c, ctl.ActionSuspend, 0)
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the state of both channels.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return run(c, ctl.ActionStatus, 0)
		},
	}
)

// Execute runs the door-guard-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChannel(c *cobra.Command, action ctl.Action, arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("channel %q is not a number", arg)
	}

	id := door.ChannelID(n)
	if err = id.Validate(); err != nil {
		return err
	}

	return run(c, action, id)
}

func run(c *cobra.Command, action ctl.Action, id door.ChannelID) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return ctl.Run(ctx, &ctl.Options{
		ConfigPath: cfgPath,
		Address:    address,
		Operator:   operator,
		Action:     action,
		Channel:    id,
		Wait:       wait,
		Out:        c.OutOrStdout(),
	})
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&address, "address", "a", "", "daemon gRPC address, overrides the configuration")
	flags.StringVarP(&operator, "operator", "o", "", "operator name, defaults to the current user")
	flags.BoolVarP(&wait, "wait", "w", false, "retry until the daemon is reachable")

	rootCmd.AddCommand(armCmd, disarmCmd, suspendCmd, statusCmd)
}
