package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dispatch engine.
type Metrics struct {
	MessagesSentTotal   prometheus.Counter
	MessagesFailedTotal prometheus.Counter

	CampaignsStartedTotal   prometheus.Counter
	CampaignsCompletedTotal prometheus.Counter
	CampaignsCancelledTotal prometheus.Counter
	ActiveCampaigns         prometheus.Gauge

	GatewayUnavailableTotal prometheus.Counter
	SendDurationSeconds     prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_messages_sent_total",
			Help: "Total number of messages delivered successfully",
		}),
		MessagesFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_messages_failed_total",
			Help: "Total number of per-recipient delivery failures",
		}),
		CampaignsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_campaigns_started_total",
			Help: "Total number of campaign runs started or resumed",
		}),
		CampaignsCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_campaigns_completed_total",
			Help: "Total number of campaigns that reached the completed state",
		}),
		CampaignsCancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_campaigns_cancelled_total",
			Help: "Total number of operator-initiated cancellations",
		}),
		ActiveCampaigns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_active_campaigns",
			Help: "Number of campaign runs currently delivering",
		}),
		GatewayUnavailableTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_gateway_unavailable_total",
			Help: "Total number of sends that hit a systemic gateway outage",
		}),
		SendDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_send_duration_seconds",
			Help:    "Duration of individual transport sends",
			Buckets: prometheus.DefBuckets,
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.CampaignsStartedTotal,
		m.CampaignsCompletedTotal,
		m.CampaignsCancelledTotal,
		m.ActiveCampaigns,
		m.GatewayUnavailableTotal,
		m.SendDurationSeconds,
	)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
