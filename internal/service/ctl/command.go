package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
	"github.com/tankwatch/tank-guard/internal/service/common"
)

// Action is an operator command.
type Action string

// Supported actions.
const (
	ActionArm     Action = "arm"
	ActionDisarm  Action = "disarm"
	ActionSuspend Action = "suspend"
	ActionStatus  Action = "status"
)

// Options configures a single control invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// Address overrides the daemon address from config when specified.
	Address string
	// Operator overrides the detected user name.
	Operator string
	// Action selects the command.
	Action Action
	// Channel is required by arm and disarm.
	Channel door.ChannelID
	// Wait retries unreachable daemons until ctx is cancelled.
	Wait bool
	// Out receives the reply.
	Out io.Writer
}

// retryInterval defines the delay between attempts when waiting for the daemon.
const retryInterval = time.Second

var errUnknownAction = errors.New("unknown action")

// Client is the daemon API used by the commands.
type Client interface {
	Arm(ctx context.Context, id door.ChannelID, op door.Operator) (string, error)
	Disarm(ctx context.Context, id door.ChannelID, op door.Operator) (string, error)
	SuspendAutoArm(ctx context.Context, op door.Operator) (string, error)
	Status(ctx context.Context) (*door.Snapshot, error)
}

// Run connects to the daemon and executes the requested action.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "door-guard-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	address := cfg.API.GRPCAddress
	if opts.Address != "" {
		address = opts.Address
	}

	op, err := common.DetectOperator(opts.Operator)
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Sending command", "address", address, "action", string(opts.Action), "operator", op.String())

	return Execute(ctx, client, op, opts)
}

// Execute runs one action against client, retrying while the daemon is
// unavailable if opts.Wait is set.
func Execute(ctx context.Context, client Client, op door.Operator, opts *Options) error {
	// attempt tries once, returns (completed, error).
	attempt := func() (bool, error) {
		reply, err := execute(ctx, client, op, opts)
		if err == nil {
			_, err = fmt.Fprintln(opts.Out, reply)

			return true, err
		}

		if opts.Wait && status.Code(err) == codes.Unavailable {
			logger.WarnKV(ctx, "Daemon unavailable, retrying", "error", err)

			return false, nil
		}

		return false, err
	}

	// Attempt immediately before starting retry loop.
	if done, err := attempt(); err != nil || done {
		return err
	}

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil || done {
				return err
			}
		}
	}
}

func execute(ctx context.Context, client Client, op door.Operator, opts *Options) (string, error) {
	switch opts.Action {
	case ActionArm:
		return client.Arm(ctx, opts.Channel, op)
	case ActionDisarm:
		return client.Disarm(ctx, opts.Channel, op)
	case ActionSuspend:
		return client.SuspendAutoArm(ctx, op)
	case ActionStatus:
		snap, err := client.Status(ctx)
		if err != nil {
			return "", err
		}

		return FormatStatus(snap), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}
}

// FormatStatus renders a snapshot for the terminal.
func FormatStatus(snap *door.Snapshot) string {
	if snap == nil {
		return "<nil status>"
	}

	var b strings.Builder

	for _, ch := range snap.Channels {
		position := "open"
		if ch.DoorClosed {
			position = "closed"
		}

		fmt.Fprintf(&b, "%d %-14s %-24s door %s", int(ch.ID), ch.Name, ch.Status(), position)

		if ch.ClosedSince != nil {
			fmt.Fprintf(&b, ", closed for %s", snap.TakenAt.Sub(*ch.ClosedSince).Round(time.Second))
		}

		b.WriteByte('\n')
	}

	relay := "off"
	if snap.RelayOn {
		relay = "ON"
	}

	fmt.Fprintf(&b, "relay %s", relay)

	switch {
	case snap.AutoArmSuspended && snap.SuspendedUntil != nil:
		fmt.Fprintf(&b, ", auto-arm suspended until %s", snap.SuspendedUntil.Local().Format("2006-01-02 15:04"))
	case snap.PendingAutoArmStart != nil:
		fmt.Fprintf(&b, ", auto-arm grace window since %s", snap.PendingAutoArmStart.Local().Format("15:04"))
	default:
		b.WriteString(", auto-arm active")
	}

	return b.String()
}
