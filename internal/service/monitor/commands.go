package monitor

import (
	"context"

	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
	"github.com/tankwatch/tank-guard/internal/metrics"
	"github.com/tankwatch/tank-guard/internal/notify"
)

// Arm arms the channel and returns the operator reply.
// Arming an armed channel only resets its closed-door timer.
func (m *Monitor) Arm(ctx context.Context, id door.ChannelID, op door.Operator) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ch := m.channel(id)
	ch.ResetTimers()

	if ch.Armed {
		return msgAlreadyArmed(ch), nil
	}

	m.armLocked(ctx, ch, door.EventArmed, op)
	m.sink.Notify(notify.Message{Text: msgArmedBy(ch, op), Channel: id, Silent: true})

	if last, ok := m.reader.Last(id); ok && !last {
		return msgArmedOpen(ch), nil
	}

	return msgArmed(ch), nil
}

// Disarm disarms the channel and clears its latched alarm.
// Every call, including one on an already disarmed channel, commands the
// relay OFF, except while the other channel is still latched: the siren
// then stays on until that channel is disarmed too.
func (m *Monitor) Disarm(ctx context.Context, id door.ChannelID, op door.Operator) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ch := m.channel(id)
	ch.ResetTimers()

	if !ch.Armed {
		m.releaseRelayLocked(ctx, id)

		return msgAlreadyDisarmed(ch), nil
	}

	wasAlarm := ch.AlarmActive

	ch.Armed = false
	ch.AlarmActive = false
	ch.LastAlarmNotifyAt = nil

	m.persistLocked(ctx)
	metrics.SetChannel(id, false, false)

	m.releaseRelayLocked(ctx, id)

	if wasAlarm {
		m.alarmCleared = true
	}

	logger.InfoKV(ctx, "Channel disarmed", "channel", int(id), "operator", op.String(), "was_alarm", wasAlarm)

	m.sink.PublishStatus(StatusChannelDisarmed(id))
	m.sink.Notify(notify.Message{Text: msgDisarmed(ch, op), Channel: id})
	m.record(door.EventDisarmed, id, op, alarmDetail(wasAlarm))

	return msgDisarmed(ch, op), nil
}

// SuspendAutoArm holds off time-based arming until the next reset time.
func (m *Monitor) SuspendAutoArm(ctx context.Context, op door.Operator) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	until := m.nextReset(now)
	already := m.suspended

	m.suspended = true
	m.suspendedUntil = &until
	m.pendingAutoArmStart = nil

	if already {
		return msgSuspended(until, true), nil
	}

	m.persistLocked(ctx)

	logger.InfoKV(ctx, "Auto-arm suspended", "until", until, "operator", op.String())
	m.record(door.EventSuspended, 0, op, "until "+until.Format("2006-01-02 15:04"))

	return msgSuspended(until, false), nil
}

func (m *Monitor) armLocked(ctx context.Context, ch *door.Channel, kind door.EventKind, op door.Operator) {
	ch.Armed = true
	ch.AlarmActive = false
	ch.LastAlarmNotifyAt = nil
	ch.ResetTimers()

	m.persistLocked(ctx)
	metrics.SetChannel(ch.ID, true, false)

	logger.InfoKV(ctx, "Channel armed", "channel", int(ch.ID), "kind", string(kind), "operator", op.String())

	m.sink.PublishStatus(StatusArmed(ch.ID))
	m.record(kind, ch.ID, op, "")
}

// releaseRelayLocked drives the relay OFF unless another channel is in alarm.
// A failed write is logged and retried by the next tick.
func (m *Monitor) releaseRelayLocked(ctx context.Context, id door.ChannelID) {
	if m.otherAlarmLocked(id) {
		return
	}

	_ = m.setRelayLocked(ctx, false)
}

func (m *Monitor) otherAlarmLocked(id door.ChannelID) bool {
	for _, ch := range m.channels {
		if ch.ID != id && ch.AlarmActive {
			return true
		}
	}

	return false
}

func alarmDetail(wasAlarm bool) string {
	if wasAlarm {
		return "alarm cleared"
	}

	return ""
}
