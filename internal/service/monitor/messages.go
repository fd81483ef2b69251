package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// Status values broadcast on the status topic.
const (
	StatusDisarmed = "DISARMED"
	StatusArmedAll = "ARMED"
)

// StatusArmed is broadcast when a channel becomes armed.
func StatusArmed(id door.ChannelID) string {
	return fmt.Sprintf("ARMED_%d", int(id))
}

// StatusAlarm is broadcast when a channel latches an alarm.
func StatusAlarm(id door.ChannelID) string {
	return fmt.Sprintf("ALARM_ACTIVE_%d", int(id))
}

// StatusChannelDisarmed is broadcast when a channel is disarmed.
func StatusChannelDisarmed(id door.ChannelID) string {
	return fmt.Sprintf("DISARMED_%d", int(id))
}

func msgWarning(ch *door.Channel, closedFor, remaining time.Duration) string {
	return fmt.Sprintf("⏰ %s door has been closed for %s. The alarm will be armed automatically in %s!",
		ch.Name, humanDuration(closedFor), humanDuration(remaining))
}

func msgAutoArmed(ch *door.Channel, after time.Duration) string {
	return fmt.Sprintf("ℹ️ %s door stayed closed for more than %s. Alarm ARMED automatically.",
		ch.Name, humanDuration(after))
}

func msgDoorMoved(ch *door.Channel, closed bool) string {
	if closed {
		return fmt.Sprintf("🚪 %s door closed (alarm disarmed).", ch.Name)
	}

	return fmt.Sprintf("🚪 %s door opened (alarm disarmed).", ch.Name)
}

func msgBreach(ch *door.Channel) string {
	return fmt.Sprintf("🚨🚨🚨 ALARM %d! 🚨🚨🚨\n%s DOOR WAS FORCED OPEN!\nRespond immediately!",
		int(ch.ID), strings.ToUpper(ch.Name))
}

func msgRealert(ch *door.Channel) string {
	if ch.DoorClosed {
		return fmt.Sprintf("🚨🚨🚨 ALARM %d CONTINUES! 🚨🚨🚨\n%s door closed, but the alarm stays active until it is disarmed!",
			int(ch.ID), ch.Name)
	}

	return fmt.Sprintf("🚨🚨🚨 ALARM %d CONTINUES! 🚨🚨🚨\n%s door is STILL OPEN! Respond immediately!",
		int(ch.ID), ch.Name)
}

func msgArmed(ch *door.Channel) string {
	return fmt.Sprintf("✅ %s armed.", ch.Name)
}

func msgArmedOpen(ch *door.Channel) string {
	return fmt.Sprintf("⚠️ %s armed while its door is open: the alarm will trigger.", ch.Name)
}

func msgArmedBy(ch *door.Channel, op door.Operator) string {
	return fmt.Sprintf("🔒 %s armed by %s.", ch.Name, op)
}

func msgAlreadyArmed(ch *door.Channel) string {
	return fmt.Sprintf("ℹ️ %s is already armed.", ch.Name)
}

func msgDisarmed(ch *door.Channel, op door.Operator) string {
	return fmt.Sprintf("❌ %s disarmed by **%s**.", ch.Name, op)
}

func msgAlreadyDisarmed(ch *door.Channel) string {
	return fmt.Sprintf("ℹ️ %s is already disarmed.", ch.Name)
}

func msgSystemDisarmed() string {
	return "✅ Alarm disarmed, the system is off."
}

func msgSuspended(until time.Time, already bool) string {
	if already {
		return fmt.Sprintf("ℹ️ Automatic arming is already suspended until %s.", until.Format("15:04"))
	}

	return fmt.Sprintf("✅ Automatic arming suspended until %s.", until.Format("15:04"))
}

func msgResumed(grace time.Duration) string {
	return fmt.Sprintf("ℹ️ Automatic arming enabled again. Closed doors will be armed in %s!",
		humanDuration(grace))
}

func msgForceArmed(ch *door.Channel) string {
	return fmt.Sprintf("🔒 %s automatic arming window elapsed. Alarm ARMED!", ch.Name)
}

func msgCannotArm(ch *door.Channel) string {
	return fmt.Sprintf("⚠️ %s could not be armed because its door is open.", ch.Name)
}

// doorReading is a startup sensor reading; ok is false when the read failed.
type doorReading struct {
	closed bool
	ok     bool
}

func msgStartup(channels []*door.Channel, readings []doorReading, clean bool) string {
	var b strings.Builder

	if clean {
		b.WriteString("✅ System started normally.\n")
	} else {
		b.WriteString("⚠️ WARNING: System restarted after an unexpected interruption!\n")
	}

	for i, ch := range channels {
		alarm := "DISARMED"
		if ch.Armed {
			alarm = "ARMED"
		}

		state := "unknown"
		if readings[i].ok {
			state = "open"
			if readings[i].closed {
				state = "closed"
			}
		}

		fmt.Fprintf(&b, "\n🔒 %s alarm: %s\n🚪 %s door: %s", ch.Name, alarm, ch.Name, state)
	}

	return b.String()
}

// humanDuration renders whole hours and minutes, e.g. "1 hour" or "55 minutes".
func humanDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "less than a minute"
	}

	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)

	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}

	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}

	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}

	return fmt.Sprintf("%d %ss", n, unit)
}
