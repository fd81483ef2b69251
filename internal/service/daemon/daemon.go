// Package daemon wires the door guard together and runs it until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/tankwatch/tank-guard/internal/api/grpc/command"
	statusapi "github.com/tankwatch/tank-guard/internal/api/http/status"
	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/hardware"
	"github.com/tankwatch/tank-guard/internal/logger"
	"github.com/tankwatch/tank-guard/internal/notify"
	"github.com/tankwatch/tank-guard/internal/publish"
	"github.com/tankwatch/tank-guard/internal/repository/journal"
	"github.com/tankwatch/tank-guard/internal/repository/state"
	"github.com/tankwatch/tank-guard/internal/service/common"
	"github.com/tankwatch/tank-guard/internal/service/monitor"
	"github.com/tankwatch/tank-guard/internal/version"
)

const (
	shutdownTimeout = 10 * time.Second
	retryDelay      = time.Second
)

// Options controls the door-guard process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Simulate forces the in-memory board.
	Simulate bool
	// SkipInstanceCheck disables the single-instance guard.
	SkipInstanceCheck bool
}

// Run loads the configuration, starts every component and blocks until ctx
// is cancelled or a component fails. The shutdown sequence always runs.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.Simulate {
		cfg.Hardware.Driver = config.DriverSimulated
	}

	if !logger.Setup(cfg.Log.Level, cfg.Log.Format) {
		logger.WarnKV(ctx, "Unknown log level, using info", "level", cfg.Log.Level)
	}

	ctx = logger.WithName(ctx, "door-guard")

	if !opts.SkipInstanceCheck {
		if err = common.EnsureSingleInstance(); err != nil {
			return err
		}
	}

	board, err := hardware.Open(cfg)
	if err != nil {
		return fmt.Errorf("open board: %w", err)
	}

	return run(ctx, cfg, board)
}

// run owns board from here on and closes it on return.
//
//nolint:funlen // Linear startup and shutdown sequence.
func run(ctx context.Context, cfg *config.Config, board hardware.Board) (err error) {
	logger.InfoKV(ctx, "Starting door guard", "version", version.Full(), "driver", cfg.Hardware.Driver)

	var (
		recorder monitor.Recorder
		events   statusapi.EventSource
		jr       *journal.Journal
	)

	if cfg.Journal.Path != "" {
		jr, err = journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			_ = board.Close()

			return fmt.Errorf("open journal: %w", err)
		}

		jr.Start(ctx)
		recorder, events = jr, jr
	}

	var (
		publisher notify.Publisher
		mqtt      *publish.MQTT
	)

	if cfg.MQTT.Broker != "" {
		mqtt = publish.NewMQTT(ctx, cfg.MQTT)
		publisher = mqtt
	}

	dispatcher := notify.NewDispatcher(newNotifier(cfg), publisher, notify.DispatcherConfig{
		Topic:         cfg.MQTT.Topic,
		RatePerSecond: cfg.Telegram.RatePerSecond,
		Timeout:       time.Duration(2*cfg.Telegram.Retries+2) * cfg.Timeout,
	})
	dispatcher.Start(ctx)

	mon, err := monitor.New(ctx, cfg, monitor.Options{
		Board:      board,
		Repository: state.NewFileRepository(cfg.StateFile),
		Sink:       dispatcher,
		Recorder:   recorder,
	})
	if err != nil {
		return multierr.Append(fmt.Errorf("create monitor: %w", err), shutdown(ctx, cfg, nil, board, dispatcher, mqtt, jr, false))
	}

	if mqtt != nil {
		mqtt.SetStatusFunc(mon.SystemStatus)
	}

	if err = mon.ReleaseRelay(ctx); err != nil {
		logger.ErrorKV(ctx, "Failed to release relay at startup", "error", err)
	}

	marker := state.NewMarker(cfg.ShutdownMarker)

	clean, err := marker.Consume()
	if err != nil {
		logger.ErrorKV(ctx, "Failed to read shutdown marker", "error", err)
	}

	if !clean {
		logger.Warn(ctx, "Previous run did not shut down cleanly")
	}

	mon.Announce(ctx, clean)

	runErr := serve(ctx, cfg, mon, events)
	if runErr != nil {
		logger.ErrorKV(ctx, "Door guard stopped with error", "error", runErr)
	}

	return multierr.Append(runErr, shutdown(ctx, cfg, mon, board, dispatcher, mqtt, jr, runErr == nil))
}

func serve(ctx context.Context, cfg *config.Config, mon *monitor.Monitor, events statusapi.EventSource) error {
	var lc net.ListenConfig

	grpcListener, err := lc.Listen(ctx, "tcp", cfg.API.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.API.GRPCAddress, err)
	}

	var httpListener net.Listener

	if cfg.API.HTTPAddress != "" {
		httpListener, err = lc.Listen(ctx, "tcp", cfg.API.HTTPAddress)
		if err != nil {
			_ = grpcListener.Close()

			return fmt.Errorf("listen on %s: %w", cfg.API.HTTPAddress, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return mon.Run(gctx) })
	g.Go(func() error { return mon.RunScheduler(gctx) })
	g.Go(func() error { return command.Serve(gctx, grpcListener, mon) })

	if httpListener != nil {
		g.Go(func() error { return statusapi.Serve(gctx, httpListener, statusapi.Routes(mon, events)) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// shutdown flushes state, writes the clean-shutdown marker, drains queued
// notifications and releases the hardware, relay OFF last.
func shutdown(
	ctx context.Context,
	cfg *config.Config,
	mon *monitor.Monitor,
	board hardware.Board,
	dispatcher *notify.Dispatcher,
	mqtt *publish.MQTT,
	jr *journal.Journal,
	clean bool,
) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info(ctx, "Shutting down")

	var errs error

	if mon != nil {
		errs = multierr.Append(errs, mon.Flush(ctx))
	}

	if clean && mon != nil {
		errs = multierr.Append(errs, state.NewMarker(cfg.ShutdownMarker).Write())
	}

	errs = multierr.Append(errs, dispatcher.Close(ctx))

	if mqtt != nil {
		mqtt.Close()
	}

	if jr != nil {
		errs = multierr.Append(errs, jr.Close(ctx))
	}

	if mon != nil {
		errs = multierr.Append(errs, mon.ReleaseRelay(ctx))
	} else {
		errs = multierr.Append(errs, board.SetRelay(ctx, false))
	}

	errs = multierr.Append(errs, board.Close())

	if errs != nil {
		logger.ErrorKV(ctx, "Shutdown finished with errors", "error", errs)
	} else {
		logger.Info(ctx, "Shutdown complete")
	}

	return errs
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Telegram.Token == "" {
		return notify.LogNotifier{}
	}

	client := &http.Client{Timeout: cfg.Timeout}

	var snapshots notify.SnapshotSource
	if cfg.Frigate.URL != "" {
		snapshots = notify.NewFrigate(cfg.Frigate.URL, cfg.Frigate.Height, client)
	}

	cameras := make(map[door.ChannelID]string, len(cfg.Channels)+1)

	for _, ch := range cfg.Channels {
		cameras[door.ChannelID(ch.ID)] = ch.Camera
	}

	if len(cfg.Channels) > 0 {
		cameras[0] = cfg.Channels[0].Camera
	}

	return notify.NewTelegram(notify.TelegramConfig{
		BaseURL:    cfg.Telegram.BaseURL,
		Token:      cfg.Telegram.Token,
		ChatID:     cfg.Telegram.ChatID,
		Retries:    cfg.Telegram.Retries,
		RetryDelay: retryDelay,
		Cameras:    cameras,
		UserAgent:  version.UserAgent(),
	}, client, snapshots)
}
