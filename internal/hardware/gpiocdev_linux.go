//go:build linux

package hardware

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/domain/door"
)

const consumer = "tank-guard"

// gpioBoard drives the doors and the relay through the GPIO character device.
// Sensors are reed switches to ground with pull-ups: LOW means closed.
type gpioBoard struct {
	sensors [door.ChannelCount]*gpiocdev.Line
	relay   *gpiocdev.Line
}

func openGPIO(cfg *config.Config) (Board, error) {
	b := new(gpioBoard)

	relayOptions := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(consumer),
		gpiocdev.AsOutput(0),
	}
	if cfg.Hardware.RelayActiveLow {
		relayOptions = append(relayOptions, gpiocdev.AsActiveLow)
	}

	relay, err := gpiocdev.RequestLine(cfg.Hardware.Chip, cfg.Hardware.RelayPin, relayOptions...)
	if err != nil {
		return nil, fmt.Errorf("request relay line %d: %w", cfg.Hardware.RelayPin, err)
	}

	b.relay = relay

	for _, id := range door.Channels() {
		pin := cfg.Channel(int(id)).SensorPin

		line, err := gpiocdev.RequestLine(cfg.Hardware.Chip, pin,
			gpiocdev.WithConsumer(consumer),
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
		)
		if err != nil {
			return nil, multierr.Append(
				fmt.Errorf("request sensor line %d: %w", pin, err),
				b.Close(),
			)
		}

		b.sensors[id.Index()] = line
	}

	return b, nil
}

func (b *gpioBoard) ReadSensor(_ context.Context, id door.ChannelID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}

	v, err := b.sensors[id.Index()].Value()
	if err != nil {
		return false, fmt.Errorf("read sensor %d: %w", int(id), err)
	}

	return v == 0, nil
}

func (b *gpioBoard) SetRelay(_ context.Context, on bool) error {
	v := 0
	if on {
		v = 1
	}

	if err := b.relay.SetValue(v); err != nil {
		return fmt.Errorf("set relay: %w", err)
	}

	return nil
}

func (b *gpioBoard) Close() error {
	var err error

	for _, line := range b.sensors {
		if line != nil {
			err = multierr.Append(err, line.Close())
		}
	}

	if b.relay != nil {
		err = multierr.Append(err, b.relay.SetValue(0))
		err = multierr.Append(err, b.relay.Close())
	}

	return err
}
