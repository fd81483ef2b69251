package door

import (
	"errors"
	"fmt"
	"time"
)

// ChannelCount is the number of monitored doors.
const ChannelCount = 2

// ChannelID identifies a monitored door. Valid values are 1 and 2.
type ChannelID int

// ErrUnknownChannel is returned for channel numbers outside 1..ChannelCount.
var ErrUnknownChannel = errors.New("unknown channel")

// Channels lists all channel identifiers in order.
func Channels() []ChannelID {
	ids := make([]ChannelID, 0, ChannelCount)
	for i := 1; i <= ChannelCount; i++ {
		ids = append(ids, ChannelID(i))
	}

	return ids
}

// Validate reports ErrUnknownChannel for out-of-range identifiers.
func (id ChannelID) Validate() error {
	if id < 1 || id > ChannelCount {
		return fmt.Errorf("channel %d: %w", int(id), ErrUnknownChannel)
	}

	return nil
}

// Index returns the zero-based slot of the channel.
func (id ChannelID) Index() int {
	return int(id) - 1
}

// Status is the state machine position of a channel, derived from its fields.
type Status string

const (
	// StatusUnarmedOpen means the channel is unarmed and no closed-door timer runs.
	StatusUnarmedOpen Status = "UNARMED_OPEN"
	// StatusUnarmedClosedWaiting means the door is closed and the auto-arm timer runs.
	StatusUnarmedClosedWaiting Status = "UNARMED_CLOSED_WAITING"
	// StatusArmedSafe means the channel is armed and no breach was seen.
	StatusArmedSafe Status = "ARMED_SAFE"
	// StatusArmedAlarm means the channel is armed and the alarm is latched.
	StatusArmedAlarm Status = "ARMED_ALARM"
)

// Channel is the per-door state owned by the monitor.
type Channel struct {
	// ID is the channel number.
	ID ChannelID
	// Name is the human readable door name used in notifications.
	Name string
	// Armed reports whether opening the door trips the alarm.
	Armed bool
	// AlarmActive is the latched breach flag. It is only ever true while Armed.
	AlarmActive bool
	// DoorClosed is the last sensor reading.
	DoorClosed bool
	// ClosedSince is when the door was first seen closed while unarmed.
	ClosedSince *time.Time
	// WarningSent guards the single pre-arm warning.
	WarningSent bool
	// LastAlarmNotifyAt throttles re-alerts.
	LastAlarmNotifyAt *time.Time
}

// NewChannel creates an unarmed channel.
func NewChannel(id ChannelID, name string) *Channel {
	if name == "" {
		name = fmt.Sprintf("Tank %d", int(id))
	}

	return &Channel{
		ID:   id,
		Name: name,
	}
}

// Status derives the state machine position.
func (c *Channel) Status() Status {
	switch {
	case c.Armed && c.AlarmActive:
		return StatusArmedAlarm
	case c.Armed:
		return StatusArmedSafe
	case c.ClosedSince != nil:
		return StatusUnarmedClosedWaiting
	default:
		return StatusUnarmedOpen
	}
}

// ResetTimers clears the closed-door timer and the warning guard.
func (c *Channel) ResetTimers() {
	c.ClosedSince = nil
	c.WarningSent = false
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}

	cloned := *c
	cloned.ClosedSince = cloneTime(c.ClosedSince)
	cloned.LastAlarmNotifyAt = cloneTime(c.LastAlarmNotifyAt)

	return &cloned
}

// Flags is the persisted subset of the system state.
type Flags struct {
	// Armed holds the arm flag of each channel, indexed by ChannelID.Index.
	Armed [ChannelCount]bool
	// AutoArmSuspended reports whether time-based auto-arming is suspended.
	AutoArmSuspended bool
	// SavedAt is when the record was written. It is set by the store on
	// load and is zero when unknown.
	SavedAt time.Time
}

// IsArmed returns the persisted arm flag of the channel.
func (f Flags) IsArmed(id ChannelID) bool {
	if id.Validate() != nil {
		return false
	}

	return f.Armed[id.Index()]
}

// Snapshot is a point-in-time copy of the whole system state.
type Snapshot struct {
	// Channels holds copies of both channels in ID order.
	Channels []*Channel
	// AutoArmSuspended mirrors the system suspension flag.
	AutoArmSuspended bool
	// SuspendedUntil is when the suspension will be lifted, if suspended.
	SuspendedUntil *time.Time
	// PendingAutoArmStart is the start of the post-suspension grace window.
	PendingAutoArmStart *time.Time
	// RelayOn is the last relay state the monitor commanded.
	RelayOn bool
	// TakenAt is when the snapshot was taken.
	TakenAt time.Time
}

// Channel returns the channel copy with the given ID or nil.
func (s *Snapshot) Channel(id ChannelID) *Channel {
	for _, ch := range s.Channels {
		if ch.ID == id {
			return ch
		}
	}

	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	v := *t

	return &v
}
