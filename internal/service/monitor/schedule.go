package monitor

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron"
	"go.uber.org/multierr"

	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
	"github.com/tankwatch/tank-guard/internal/notify"
)

// RunScheduler runs CheckSchedule every schedule interval until ctx is done.
func (m *Monitor) RunScheduler(ctx context.Context) error {
	ctx = logger.WithName(ctx, "scheduler")

	scheduler := gocron.NewScheduler(m.loc)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(m.timing.ScheduleInterval).Tag("auto-arm").Do(func() {
		if err := m.CheckSchedule(ctx); err != nil {
			logger.ErrorKV(ctx, "Schedule check failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule auto-arm check: %w", err)
	}

	scheduler.StartAsync()
	logger.InfoKV(ctx, "Scheduler started", "interval", m.timing.ScheduleInterval)

	<-ctx.Done()
	scheduler.Stop()

	logger.Info(ctx, "Scheduler stopped")

	return nil
}

// CheckSchedule lifts an expired suspension and, once the grace window
// after it has elapsed, arms every closed unarmed door.
func (m *Monitor) CheckSchedule(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	if m.suspended && m.suspendedUntil != nil && !now.Before(*m.suspendedUntil) {
		start := now

		m.suspended = false
		m.suspendedUntil = nil
		m.pendingAutoArmStart = &start

		m.persistLocked(ctx)

		logger.InfoKV(ctx, "Auto-arm suspension lifted", "grace", m.timing.ResumeGrace)
		m.sink.Notify(notify.Message{Text: msgResumed(m.timing.ResumeGrace)})
		m.record(door.EventResumed, 0, door.SystemOperator, "")
	}

	if m.suspended || m.pendingAutoArmStart == nil || now.Sub(*m.pendingAutoArmStart) < m.timing.ResumeGrace {
		return nil
	}

	m.pendingAutoArmStart = nil

	var errs error

	for _, ch := range m.channels {
		if ch.Armed {
			continue
		}

		closed, err := m.board.ReadSensor(ctx, ch.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read channel %d: %w", int(ch.ID), err))

			continue
		}

		ch.DoorClosed = closed

		if !closed {
			ch.ResetTimers()
			m.sink.Notify(notify.Message{Text: msgCannotArm(ch), Channel: ch.ID})

			continue
		}

		m.armLocked(ctx, ch, door.EventForceArmed, door.SystemOperator)
		m.sink.Notify(notify.Message{Text: msgForceArmed(ch), Channel: ch.ID})
	}

	return errs
}
