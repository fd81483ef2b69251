// Package status serves the read-only HTTP API: health, the current state
// snapshot, the audit journal and Prometheus metrics.
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
	"github.com/tankwatch/tank-guard/internal/version"
)

const (
	requestTimeout = 10 * time.Second
	defaultLimit   = 50
	maxLimit       = 1000
)

// StateSource provides the current state.
type StateSource interface {
	Status() *door.Snapshot
	SystemStatus() string
}

// EventSource provides the audit journal.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]door.Event, error)
}

// MessageResponse carries an error or informational message.
type MessageResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	System  string `json:"system"`
	Version string `json:"version"`
}

// ChannelView is the JSON form of a channel.
type ChannelView struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	Armed             bool       `json:"armed"`
	AlarmActive       bool       `json:"alarm_active"`
	DoorClosed        bool       `json:"door_closed"`
	ClosedSince       *time.Time `json:"closed_since,omitempty"`
	WarningSent       bool       `json:"warning_sent"`
	LastAlarmNotifyAt *time.Time `json:"last_alarm_notify_at,omitempty"`
}

// SnapshotView is the JSON form of a state snapshot.
type SnapshotView struct {
	TakenAt             time.Time     `json:"taken_at"`
	System              string        `json:"system"`
	AutoArmSuspended    bool          `json:"auto_arm_suspended"`
	SuspendedUntil      *time.Time    `json:"suspended_until,omitempty"`
	PendingAutoArmStart *time.Time    `json:"pending_auto_arm_start,omitempty"`
	RelayOn             bool          `json:"relay_on"`
	Channels            []ChannelView `json:"channels"`
}

// EventView is the JSON form of a journal event.
type EventView struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Channel  int       `json:"channel,omitempty"`
	Kind     string    `json:"kind"`
	Operator string    `json:"operator,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

type handlers struct {
	state  StateSource
	events EventSource
}

// Routes builds the HTTP router. events may be nil when the journal is disabled.
func Routes(state StateSource, events EventSource) *chi.Mux {
	h := &handlers{state: state, events: events}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, MessageResponse{Error: "Resource not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, MessageResponse{Error: "Method not allowed"})
	})

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/events", h.recentEvents)
	})

	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:  "ok",
		System:  h.state.SystemStatus(),
		Version: version.Version,
	})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, toSnapshotView(h.state.Status(), h.state.SystemStatus()))
}

func (h *handlers) recentEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, MessageResponse{Error: "journal is disabled"})

		return
	}

	limit := defaultLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, MessageResponse{Error: "limit must be a positive number"})

			return
		}

		limit = lo.Clamp(parsed, 1, maxLimit)
	}

	events, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		logger.ErrorKV(r.Context(), "Failed to read journal", "error", err)

		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}

		render.Status(r, status)
		render.JSON(w, r, MessageResponse{Error: "unable to read journal"})

		return
	}

	render.JSON(w, r, lo.Map(events, func(ev door.Event, _ int) EventView {
		return EventView{
			ID:       ev.ID,
			At:       ev.At,
			Channel:  int(ev.Channel),
			Kind:     string(ev.Kind),
			Operator: ev.Operator,
			Detail:   ev.Detail,
		}
	}))
}

func toSnapshotView(snap *door.Snapshot, system string) SnapshotView {
	return SnapshotView{
		TakenAt:             snap.TakenAt,
		System:              system,
		AutoArmSuspended:    snap.AutoArmSuspended,
		SuspendedUntil:      snap.SuspendedUntil,
		PendingAutoArmStart: snap.PendingAutoArmStart,
		RelayOn:             snap.RelayOn,
		Channels: lo.Map(snap.Channels, func(ch *door.Channel, _ int) ChannelView {
			return ChannelView{
				ID:                int(ch.ID),
				Name:              ch.Name,
				Status:            string(ch.Status()),
				Armed:             ch.Armed,
				AlarmActive:       ch.AlarmActive,
				DoorClosed:        ch.DoorClosed,
				ClosedSince:       ch.ClosedSince,
				WarningSent:       ch.WarningSent,
				LastAlarmNotifyAt: ch.LastAlarmNotifyAt,
			}
		}),
	}
}
