package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
	"github.com/tankwatch/tank-guard/internal/metrics"
	"github.com/tankwatch/tank-guard/internal/notify"
	"github.com/tankwatch/tank-guard/internal/sensor"
)

var errTickPanic = errors.New("tick panicked")

type reading struct {
	closed bool
	ok     bool
}

// Run evaluates both channels every tick interval until ctx is done.
// A failed tick is logged and followed by the error back-off; the loop
// never exits on its own.
func (m *Monitor) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "monitor")

	ticker := time.NewTicker(m.timing.TickInterval)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Monitor loop started", "interval", m.timing.TickInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Monitor loop stopped")

			return nil
		case <-ticker.C:
		}

		err := m.Tick(ctx)
		if err == nil {
			continue
		}

		kind := "hardware"
		if errors.Is(err, errTickPanic) {
			kind = "panic"
		}

		metrics.RecordTickError(kind)
		logger.ErrorKV(ctx, "Tick failed", "kind", kind, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.timing.ErrorBackoff):
		}
	}
}

// Tick samples both sensors and advances both channels by one step.
// Hardware failures of one channel do not stop the other from being
// evaluated; all failures are returned together.
func (m *Monitor) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %v", errTickPanic, r))
		}
	}()

	metrics.RecordTick()

	var readings [door.ChannelCount]reading

	for _, id := range door.Channels() {
		closed, readErr := m.board.ReadSensor(ctx, id)
		if readErr != nil {
			err = multierr.Append(err, fmt.Errorf("read channel %d: %w", int(id), readErr))

			continue
		}

		readings[id.Index()] = reading{closed: closed, ok: true}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	for _, id := range door.Channels() {
		r := readings[id.Index()]
		if !r.ok {
			continue
		}

		edge := m.reader.Observe(id, r.closed)
		err = multierr.Append(err, m.stepLocked(ctx, m.channel(id), r.closed, edge, now))
	}

	return multierr.Append(err, m.settleLocked(ctx))
}

func (m *Monitor) stepLocked(ctx context.Context, ch *door.Channel, closed bool, edge sensor.Edge, now time.Time) error {
	ch.DoorClosed = closed

	if !ch.Armed {
		m.autoArmLocked(ctx, ch, now)
	}

	if !ch.Armed {
		if edge != sensor.EdgeNone {
			logger.InfoKV(ctx, "Door moved", "channel", int(ch.ID), "edge", edge.String())
			m.sink.Notify(notify.Message{Text: msgDoorMoved(ch, closed), Channel: ch.ID, Silent: true})
		}

		return nil
	}

	return m.latchLocked(ctx, ch, now)
}

func (m *Monitor) autoArmLocked(ctx context.Context, ch *door.Channel, now time.Time) {
	if !ch.DoorClosed {
		ch.ResetTimers()

		return
	}

	if ch.ClosedSince == nil {
		since := now
		ch.ClosedSince = &since
		ch.WarningSent = false
	}

	// Suspension holds off the warning and arming, not the timer.
	if m.suspended {
		return
	}

	elapsed := now.Sub(*ch.ClosedSince)

	if elapsed > m.timing.WarnAfter && !ch.WarningSent {
		ch.WarningSent = true

		logger.InfoKV(ctx, "Auto-arm warning", "channel", int(ch.ID), "closed_for", elapsed)
		m.sink.Notify(notify.Message{
			Text:    msgWarning(ch, m.timing.WarnAfter, m.timing.AutoArmAfter-m.timing.WarnAfter),
			Channel: ch.ID,
		})
	}

	if elapsed > m.timing.AutoArmAfter {
		m.armLocked(ctx, ch, door.EventAutoArmed, door.SystemOperator)
		m.sink.Notify(notify.Message{Text: msgAutoArmed(ch, m.timing.AutoArmAfter), Channel: ch.ID})
	}
}

// latchLocked trips the alarm on an open armed door and keeps a latched
// alarm alive with periodic re-alerts.
func (m *Monitor) latchLocked(ctx context.Context, ch *door.Channel, now time.Time) error {
	if !ch.AlarmActive {
		if ch.DoorClosed {
			return nil
		}

		ch.AlarmActive = true
		notified := now
		ch.LastAlarmNotifyAt = &notified

		logger.ErrorKV(ctx, "Alarm triggered", "channel", int(ch.ID), "name", ch.Name)
		metrics.RecordAlarm(ch.ID)
		metrics.SetChannel(ch.ID, ch.Armed, ch.AlarmActive)

		err := m.setRelayLocked(ctx, true)

		m.sink.PublishStatus(StatusAlarm(ch.ID))
		m.sink.Notify(notify.Message{Text: msgBreach(ch), Channel: ch.ID})
		m.record(door.EventAlarm, ch.ID, door.Operator{}, "door opened while armed")

		return err
	}

	if ch.LastAlarmNotifyAt == nil || now.Sub(*ch.LastAlarmNotifyAt) > m.timing.RealertInterval {
		notified := now
		ch.LastAlarmNotifyAt = &notified

		logger.WarnKV(ctx, "Alarm still active", "channel", int(ch.ID), "door_closed", ch.DoorClosed)
		m.sink.Notify(notify.Message{Text: msgRealert(ch), Channel: ch.ID})

		return m.setRelayLocked(ctx, true)
	}

	if !m.relayOn {
		return m.setRelayLocked(ctx, true)
	}

	return nil
}

// settleLocked keeps the relay consistent with the latched alarms and
// reports a full disarm once both channels are released.
func (m *Monitor) settleLocked(ctx context.Context) error {
	anyArmed, anyAlarm := false, false

	for _, ch := range m.channels {
		anyArmed = anyArmed || ch.Armed
		anyAlarm = anyAlarm || ch.AlarmActive
	}

	if m.alarmCleared {
		m.alarmCleared = false

		if !anyArmed {
			err := m.setRelayLocked(ctx, false)

			logger.Info(ctx, "System disarmed, all alarms cleared")
			m.sink.PublishStatus(StatusDisarmed)
			m.sink.Notify(notify.Message{Text: msgSystemDisarmed()})

			return err
		}
	}

	if !anyAlarm && m.relayOn {
		return m.setRelayLocked(ctx, false)
	}

	return nil
}
