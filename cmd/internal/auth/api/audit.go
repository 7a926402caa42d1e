package authapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event is one security-relevant auth action. Tokens are never recorded,
// only their fingerprints.
type Event struct {
	Action    string         `json:"action"`
	UserID    string         `json:"userId,omitempty"`
	DeviceID  string         `json:"deviceId,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	At        time.Time      `json:"at"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Auditor records auth events. Record must not block the request.
type Auditor interface {
	Record(ctx context.Context, e Event)
}

// Auditors fans an event out to every auditor.
type Auditors []Auditor

func (a Auditors) Record(ctx context.Context, e Event) {
	for _, x := range a {
		if x != nil {
			x.Record(ctx, e)
		}
	}
}

// LogAuditor writes events to the structured log.
type LogAuditor struct {
	Log *slog.Logger
}

func (a LogAuditor) Record(ctx context.Context, e Event) {
	if a.Log == nil {
		return
	}
	attrs := []any{"user_id", e.UserID, "device_id", e.DeviceID, "ip", e.IP}
	for k, v := range e.Meta {
		attrs = append(attrs, k, v)
	}
	a.Log.InfoContext(ctx, e.Action, attrs...)
}

// MetricsAuditor counts events by action.
type MetricsAuditor struct {
	events *prometheus.CounterVec
}

// NewMetricsAuditor registers bloggers_auth_events_total on reg.
func NewMetricsAuditor(reg prometheus.Registerer) (*MetricsAuditor, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bloggers",
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Auth events by action.",
	}, []string{"action"})
	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &MetricsAuditor{events: events}, nil
}

func (a *MetricsAuditor) Record(_ context.Context, e Event) {
	a.events.WithLabelValues(e.Action).Inc()
}

func (h *Handler) audit(ctx context.Context, e Event) {
	if h.auditor == nil {
		return
	}
	if e.At.IsZero() {
		e.At = h.now().UTC()
	}
	h.auditor.Record(ctx, e)
}
