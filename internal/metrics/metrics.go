// Package metrics holds the Prometheus collectors of the door alarm.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

var (
	// ticks counts evaluated polling ticks.
	ticks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tankguard_ticks_total",
		Help: "Total polling ticks evaluated",
	})

	// tickErrors counts tick failures by kind (hardware, panic).
	tickErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankguard_tick_errors_total",
			Help: "Total polling tick errors by kind",
		},
		[]string{"kind"},
	)

	// alarms counts latched alarms per channel.
	alarms = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankguard_alarms_total",
			Help: "Total alarms latched by channel",
		},
		[]string{"channel"},
	)

	// armed reports the arm flag per channel.
	armed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankguard_channel_armed",
			Help: "1 when the channel is armed",
		},
		[]string{"channel"},
	)

	// alarmActive reports the alarm latch per channel.
	alarmActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankguard_channel_alarm_active",
			Help: "1 when the channel alarm is latched",
		},
		[]string{"channel"},
	)

	// persistFailures counts failed writes of the state file.
	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tankguard_persist_failures_total",
		Help: "Total failed state file writes",
	})

	// notifications counts outbound notifications by result (sent, failed, dropped).
	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankguard_notifications_total",
			Help: "Total outbound notifications by result",
		},
		[]string{"result"},
	)

	// publishes counts status broadcasts by result.
	publishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankguard_publishes_total",
			Help: "Total status broadcasts by result",
		},
		[]string{"result"},
	)
)

// Result labels.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// RecordTick increments the tick counter.
func RecordTick() {
	ticks.Inc()
}

// RecordTickError increments the tick error counter.
func RecordTickError(kind string) {
	tickErrors.WithLabelValues(kind).Inc()
}

// RecordAlarm increments the alarm counter of the channel.
func RecordAlarm(id door.ChannelID) {
	alarms.WithLabelValues(channelLabel(id)).Inc()
}

// SetChannel updates the armed and alarm gauges of the channel.
func SetChannel(id door.ChannelID, isArmed, isAlarm bool) {
	armed.WithLabelValues(channelLabel(id)).Set(boolValue(isArmed))
	alarmActive.WithLabelValues(channelLabel(id)).Set(boolValue(isAlarm))
}

// RecordPersistFailure increments the persistence failure counter.
func RecordPersistFailure() {
	persistFailures.Inc()
}

// RecordNotification increments the notification counter.
func RecordNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// RecordPublish increments the publish counter.
func RecordPublish(result string) {
	publishes.WithLabelValues(result).Inc()
}

func channelLabel(id door.ChannelID) string {
	return strconv.Itoa(int(id))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
