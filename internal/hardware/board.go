package hardware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// Board is the hardware boundary of the alarm: two door sensors and one relay.
type Board interface {
	// ReadSensor reports whether the door of the channel is closed.
	ReadSensor(ctx context.Context, id door.ChannelID) (closed bool, err error)
	// SetRelay drives the siren relay.
	SetRelay(ctx context.Context, on bool) error
	// Close releases the lines.
	Close() error
}

var (
	// ErrTimeout is returned when a hardware call does not finish in time.
	ErrTimeout = errors.New("hardware call timed out")
	// ErrUnsupported is returned when the driver is not available on this platform.
	ErrUnsupported = errors.New("hardware driver not supported on this platform")
)

// Open creates the board selected in the configuration, wrapped so that every
// call is bounded by the configured hardware timeout.
func Open(cfg *config.Config) (Board, error) {
	var (
		board Board
		err   error
	)

	switch cfg.Hardware.Driver {
	case config.DriverSimulated:
		board = NewMemoryBoard()
	default:
		board, err = openGPIO(cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s board: %w", cfg.Hardware.Driver, err)
	}

	return WithTimeout(board, cfg.Timing.HardwareTimeout), nil
}

// Bounded wraps a Board and gives up on calls that exceed the timeout so a
// stuck line cannot starve the polling loop.
type Bounded struct {
	board   Board
	timeout time.Duration
}

// WithTimeout wraps board. A non-positive timeout returns board unchanged.
func WithTimeout(board Board, timeout time.Duration) Board {
	if timeout <= 0 {
		return board
	}

	return &Bounded{board: board, timeout: timeout}
}

// ReadSensor reads the sensor within the timeout.
func (b *Bounded) ReadSensor(ctx context.Context, id door.ChannelID) (bool, error) {
	type result struct {
		closed bool
		err    error
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan result, 1)

	go func() {
		closed, err := b.board.ReadSensor(ctx, id)
		done <- result{closed: closed, err: err}
	}()

	select {
	case r := <-done:
		return r.closed, r.err
	case <-ctx.Done():
		return false, fmt.Errorf("read sensor %d: %w after %s", int(id), ErrTimeout, b.timeout)
	}
}

// SetRelay writes the relay within the timeout.
func (b *Bounded) SetRelay(ctx context.Context, on bool) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- b.board.SetRelay(ctx, on)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("set relay: %w after %s", ErrTimeout, b.timeout)
	}
}

// Close closes the wrapped board.
func (b *Bounded) Close() error {
	return b.board.Close()
}
