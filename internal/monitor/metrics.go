package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	SessionsStarted prometheus.Counter
	SessionsStopped prometheus.Counter

	Polls          prometheus.Counter
	UpdatesPushed  prometheus.Counter
	UpstreamErrors prometheus.Counter

	PollDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busz_active_sessions",
			Help: "Number of live monitoring sessions.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busz_sessions_started_total",
			Help: "Total monitoring sessions started.",
		}),
		SessionsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busz_sessions_stopped_total",
			Help: "Total monitoring sessions stopped or terminated.",
		}),
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busz_polls_total",
			Help: "Total upstream poll cycles.",
		}),
		UpdatesPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busz_updates_pushed_total",
			Help: "Total bus_update messages pushed to clients.",
		}),
		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busz_upstream_errors_total",
			Help: "Total TAGO API errors.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "busz_poll_duration_seconds",
			Help:    "Duration of one poll cycle against the TAGO API.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.SessionsStarted, c.SessionsStopped,
		c.Polls, c.UpdatesPushed, c.UpstreamErrors,
		c.PollDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
