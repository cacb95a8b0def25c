// Package metrics exports the synchronizer's counters for Prometheus and
// serves them on a small debug HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/reconcile"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

const namespace = "orya_chat"

// Collectors counts reconciler outcomes and connection changes. It is a
// reconcile.Recorder.
type Collectors struct {
	registry *prometheus.Registry

	eventsApplied *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	sendsFailed   prometheus.Counter
	pagesRejected prometheus.Counter
	connection    *prometheus.GaugeVec
	receipts      prometheus.Counter
}

var _ reconcile.Recorder = (*Collectors)(nil)

// New registers the collectors on a fresh registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collectors{
		registry: reg,
		eventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Stream events applied to the timeline, by type.",
		}, []string{"type"}),
		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Stream events dropped, by type and reason.",
		}, []string{"type", "reason"}),
		sendsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_failed_total",
			Help:      "Message sends that ended in the failed state.",
		}),
		pagesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_pages_rejected_total",
			Help:      "Older history pages rejected as out of order.",
		}),
		connection: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current real-time connection state.",
		}, []string{"state"}),
		receipts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_receipts_total",
			Help:      "Read receipts acknowledged by the server.",
		}),
	}
}

// Registry returns the registry the collectors live in.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collectors) EventApplied(t types.EventType) {
	c.eventsApplied.WithLabelValues(string(t)).Inc()
}

func (c *Collectors) EventDropped(t types.EventType, reason string) {
	c.eventsDropped.WithLabelValues(string(t), reason).Inc()
}

func (c *Collectors) SendFailed() {
	c.sendsFailed.Inc()
}

func (c *Collectors) PageRejected() {
	c.pagesRejected.Inc()
}

// ReceiptSent counts an acknowledged read receipt.
func (c *Collectors) ReceiptSent() {
	c.receipts.Inc()
}

// SetConnection marks state as the current connection state.
func (c *Collectors) SetConnection(state types.ConnectionState) {
	for _, s := range []types.ConnectionState{types.ConnectionConnected, types.ConnectionReconnecting, types.ConnectionOffline} {
		v := 0.0
		if s == state {
			v = 1
		}
		c.connection.WithLabelValues(string(s)).Set(v)
	}
}
