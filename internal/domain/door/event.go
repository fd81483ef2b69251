package door

import "time"

// EventKind classifies audit journal entries.
type EventKind string

// Journal event kinds.
const (
	EventArmed         EventKind = "armed"
	EventAutoArmed     EventKind = "auto_armed"
	EventForceArmed    EventKind = "force_armed"
	EventDisarmed      EventKind = "disarmed"
	EventAlarm         EventKind = "alarm"
	EventSuspended     EventKind = "auto_arm_suspended"
	EventResumed       EventKind = "auto_arm_resumed"
	EventSystemStarted EventKind = "system_started"
	EventCrashRecovery EventKind = "crash_recovery"
)

// Event is one audit journal entry. Channel is zero for system-wide events.
type Event struct {
	ID       string
	At       time.Time
	Channel  ChannelID
	Kind     EventKind
	Operator string
	Detail   string
}
