// Package door contains the core domain types of the tank door alarm.
//
// It defines the monitored Channel (one door sensor), the persisted Flags,
// the Operator who issued a command, the derived Status of a channel and
// the Snapshot handed out to transports, with Clone helpers so callers never
// hold references into the monitor's guarded state.
package door
