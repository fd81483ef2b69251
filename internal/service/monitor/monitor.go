// Package monitor implements the dual-channel door alarm state machine:
// debounced sensor sampling, the closed-door auto-arm timer, the latched
// alarm with periodic re-alerts and the daily auto-arm suspension.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/hardware"
	"github.com/tankwatch/tank-guard/internal/logger"
	"github.com/tankwatch/tank-guard/internal/metrics"
	"github.com/tankwatch/tank-guard/internal/notify"
	repo "github.com/tankwatch/tank-guard/internal/repository/state"
	"github.com/tankwatch/tank-guard/internal/sensor"
)

// ErrInvariant is returned by CheckInvariants when the state is inconsistent.
var ErrInvariant = errors.New("state invariant violated")

// Clock abstracts wall-clock time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Sink receives outbound notifications and status broadcasts.
// Implementations must not block.
type Sink interface {
	Notify(msg notify.Message)
	PublishStatus(value string)
}

// Recorder receives audit events. Implementations must not block.
type Recorder interface {
	Record(ev door.Event)
}

// Options carries the collaborators of a Monitor.
type Options struct {
	Board      hardware.Board
	Repository repo.Repository
	Sink       Sink
	// Recorder is optional.
	Recorder Recorder
	// Clock defaults to the system clock.
	Clock Clock
}

// Monitor owns both channels and the system-wide auto-arm state.
// Every mutation happens under mu.
type Monitor struct {
	timing      config.Timing
	loc         *time.Location
	resetHour   int
	resetMinute int

	clock    Clock
	board    hardware.Board
	repo     repo.Repository
	sink     Sink
	recorder Recorder
	reader   *sensor.Reader

	mu                  sync.Mutex
	channels            [door.ChannelCount]*door.Channel
	suspended           bool
	suspendedUntil      *time.Time
	pendingAutoArmStart *time.Time
	relayOn             bool
	// alarmCleared is set when a disarm released a latched alarm since the last tick.
	alarmCleared bool
}

// New creates a monitor and restores the persisted flags.
// Missing or unreadable state starts both channels disarmed.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Monitor, error) {
	if cfg == nil {
		return nil, errors.New("configuration is not set")
	}

	if opts.Board == nil || opts.Sink == nil {
		return nil, errors.New("board and sink are required")
	}

	hour, minute, err := cfg.Timing.ResetClock()
	if err != nil {
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}

	m := &Monitor{
		timing:      cfg.Timing,
		loc:         cfg.Location(),
		resetHour:   hour,
		resetMinute: minute,
		clock:       clock,
		board:       opts.Board,
		repo:        opts.Repository,
		sink:        opts.Sink,
		recorder:    opts.Recorder,
		reader:      sensor.NewReader(),
	}

	for _, id := range door.Channels() {
		m.channels[id.Index()] = door.NewChannel(id, cfg.Channel(int(id)).Name)
	}

	flags := m.loadFlags(ctx)
	for _, id := range door.Channels() {
		ch := m.channels[id.Index()]
		ch.Armed = flags.IsArmed(id)
		metrics.SetChannel(id, ch.Armed, false)
	}

	if flags.AutoArmSuspended {
		m.suspended = true
		until := m.restoredSuspensionEnd(flags.SavedAt)
		m.suspendedUntil = &until
	}

	logger.InfoKV(ctx, "Monitor state restored",
		"armed_1", flags.Armed[0], "armed_2", flags.Armed[1],
		"auto_arm_suspended", flags.AutoArmSuspended)

	return m, nil
}

func (m *Monitor) loadFlags(ctx context.Context) door.Flags {
	if m.repo == nil {
		return door.Flags{}
	}

	flags, err := m.repo.Load(ctx)
	switch {
	case err == nil:
		return flags
	case errors.Is(err, repo.ErrNotFound):
		logger.Info(ctx, "No saved state, starting disarmed")
	default:
		logger.ErrorKV(ctx, "Saved state is unreadable, starting disarmed", "error", err)
	}

	return door.Flags{}
}

// Status returns a copy of the whole state.
func (m *Monitor) Status() *door.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &door.Snapshot{
		Channels:         make([]*door.Channel, 0, door.ChannelCount),
		AutoArmSuspended: m.suspended,
		RelayOn:          m.relayOn,
		TakenAt:          m.clock.Now(),
	}

	for _, ch := range m.channels {
		snap.Channels = append(snap.Channels, ch.Clone())
	}

	if m.suspendedUntil != nil {
		until := *m.suspendedUntil
		snap.SuspendedUntil = &until
	}

	if m.pendingAutoArmStart != nil {
		start := *m.pendingAutoArmStart
		snap.PendingAutoArmStart = &start
	}

	return snap
}

// SystemStatus summarizes the state as a single broadcast value.
func (m *Monitor) SystemStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.systemStatusLocked()
}

func (m *Monitor) systemStatusLocked() string {
	armed := 0

	var last door.ChannelID

	for _, ch := range m.channels {
		if ch.AlarmActive {
			return StatusAlarm(ch.ID)
		}

		if ch.Armed {
			armed++
			last = ch.ID
		}
	}

	switch armed {
	case 0:
		return StatusDisarmed
	case door.ChannelCount:
		return StatusArmedAll
	default:
		return StatusArmed(last)
	}
}

// CheckInvariants verifies the relationships between channel fields.
func (m *Monitor) CheckInvariants() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.channels {
		switch {
		case ch.AlarmActive && !ch.Armed:
			return fmt.Errorf("%w: channel %d alarm active while disarmed", ErrInvariant, int(ch.ID))
		case ch.ClosedSince != nil && (ch.Armed || !ch.DoorClosed):
			return fmt.Errorf("%w: channel %d closed timer outside closed unarmed state", ErrInvariant, int(ch.ID))
		case ch.ClosedSince == nil && ch.WarningSent:
			return fmt.Errorf("%w: channel %d warning flag without timer", ErrInvariant, int(ch.ID))
		}
	}

	if m.suspended && m.pendingAutoArmStart != nil {
		return fmt.Errorf("%w: grace window open while suspended", ErrInvariant)
	}

	return nil
}

// ReleaseRelay drives the siren relay OFF unconditionally.
func (m *Monitor) ReleaseRelay(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.setRelayLocked(ctx, false)
}

// Flush persists the current flags.
func (m *Monitor) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repo == nil {
		return nil
	}

	if err := m.repo.Save(ctx, m.flagsLocked()); err != nil {
		metrics.RecordPersistFailure()

		return fmt.Errorf("persist state: %w", err)
	}

	return nil
}

// Announce sends the startup report with the current door readings.
// cleanStart is false when the previous run ended without a clean shutdown.
func (m *Monitor) Announce(ctx context.Context, cleanStart bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make([]*door.Channel, 0, door.ChannelCount)
	readings := make([]doorReading, 0, door.ChannelCount)

	for _, ch := range m.channels {
		closed, err := m.board.ReadSensor(ctx, ch.ID)
		if err != nil {
			logger.WarnKV(ctx, "Startup sensor read failed", "channel", int(ch.ID), "error", err)
		}

		channels = append(channels, ch)
		readings = append(readings, doorReading{closed: closed, ok: err == nil})
	}

	kind := door.EventSystemStarted
	if !cleanStart {
		kind = door.EventCrashRecovery
	}

	m.sink.Notify(notify.Message{Text: msgStartup(channels, readings, cleanStart)})
	m.sink.PublishStatus(m.systemStatusLocked())
	m.record(kind, 0, door.SystemOperator, "")
}

func (m *Monitor) flagsLocked() door.Flags {
	var flags door.Flags
	for _, ch := range m.channels {
		flags.Armed[ch.ID.Index()] = ch.Armed
	}

	flags.AutoArmSuspended = m.suspended

	return flags
}

// persistLocked saves the flags. Failures are logged and counted; the
// in-memory state stays authoritative.
func (m *Monitor) persistLocked(ctx context.Context) {
	if m.repo == nil {
		return
	}

	if err := m.repo.Save(ctx, m.flagsLocked()); err != nil {
		metrics.RecordPersistFailure()
		logger.ErrorKV(ctx, "Failed to persist state", "error", err)
	}
}

func (m *Monitor) setRelayLocked(ctx context.Context, on bool) error {
	if err := m.board.SetRelay(ctx, on); err != nil {
		logger.ErrorKV(ctx, "Relay write failed", "on", on, "error", err)

		return fmt.Errorf("set relay %t: %w", on, err)
	}

	m.relayOn = on

	return nil
}

func (m *Monitor) record(kind door.EventKind, id door.ChannelID, op door.Operator, detail string) {
	if m.recorder == nil {
		return
	}

	m.recorder.Record(door.Event{
		At:       m.clock.Now(),
		Channel:  id,
		Kind:     kind,
		Operator: op.String(),
		Detail:   detail,
	})
}

func (m *Monitor) channel(id door.ChannelID) *door.Channel {
	return m.channels[id.Index()]
}

// resetAt returns today's suspension reset time in the configured zone.
func (m *Monitor) resetAt(now time.Time) time.Time {
	local := now.In(m.loc)

	return time.Date(local.Year(), local.Month(), local.Day(), m.resetHour, m.resetMinute, 0, 0, m.loc)
}

// restoredSuspensionEnd returns when a suspension loaded from the store ends.
// A suspension still active when the record was saved runs until the first
// reset after that save. Without a timestamp it ends at today's reset.
func (m *Monitor) restoredSuspensionEnd(savedAt time.Time) time.Time {
	if savedAt.IsZero() {
		return m.resetAt(m.clock.Now())
	}

	return m.nextReset(savedAt)
}

// nextReset returns the first reset time strictly after now.
func (m *Monitor) nextReset(now time.Time) time.Time {
	reset := m.resetAt(now)
	if !reset.After(now) {
		reset = reset.AddDate(0, 0, 1)
	}

	return reset
}
