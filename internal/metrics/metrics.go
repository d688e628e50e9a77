// Package metrics records per-run counters. A run is a short-lived process, so
// the registry is written to a node-exporter textfile instead of being served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deusflow/techdigest/internal/news"
)

const namespace = "techdigest"

type Metrics struct {
	registry *prometheus.Registry

	sourcesFetched   *prometheus.CounterVec
	entriesScanned   prometheus.Counter
	entriesDropped   *prometheus.CounterVec
	pageLookups      prometheus.Counter
	itemsCollected   prometheus.Gauge
	messagesSent     prometheus.Counter
	deliveryFailures prometheus.Counter
	ledgerSize       prometheus.Gauge
	processingTime   prometheus.Gauge
	lastRun          prometheus.Gauge
	lastSuccess      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sourcesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_fetched_total",
			Help:      "Feed fetch attempts by result.",
		}, []string{"result"}),
		entriesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_scanned_total",
			Help:      "Feed entries examined.",
		}),
		entriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_dropped_total",
			Help:      "Feed entries dropped by reason.",
		}, []string{"reason"}),
		pageLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_summary_lookups_total",
			Help:      "Article pages consulted for a summary.",
		}),
		itemsCollected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "digest_items",
			Help:      "Items in the last composed digest.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_messages_sent_total",
			Help:      "Digests delivered.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_delivery_failures_total",
			Help:      "Digest deliveries that failed.",
		}),
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seen_ledger_ids",
			Help:      "Ids held in the seen ledger after the run.",
		}),
		processingTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run delivered its digest, 0 otherwise.",
		}),
	}

	m.registry.MustRegister(
		m.sourcesFetched,
		m.entriesScanned,
		m.entriesDropped,
		m.pageLookups,
		m.itemsCollected,
		m.messagesSent,
		m.deliveryFailures,
		m.ledgerSize,
		m.processingTime,
		m.lastRun,
		m.lastSuccess,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordCollect(res news.Result) {
	m.sourcesFetched.WithLabelValues("ok").Add(float64(res.Stats.SourcesOK))
	m.sourcesFetched.WithLabelValues("error").Add(float64(res.Stats.SourcesFailed))
	m.entriesScanned.Add(float64(res.Stats.EntriesScanned))
	m.entriesDropped.WithLabelValues("irrelevant").Add(float64(res.Stats.Irrelevant))
	m.entriesDropped.WithLabelValues("duplicate").Add(float64(res.Stats.Duplicates))
	m.pageLookups.Add(float64(res.Stats.PageLookups))
	m.itemsCollected.Set(float64(len(res.Items)))
}

func (m *Metrics) RecordDelivery(err error) {
	if err != nil {
		m.deliveryFailures.Inc()
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) SetLedgerSize(n int) {
	m.ledgerSize.Set(float64(n))
}

// Finish stamps the run outcome and duration.
func (m *Metrics) Finish(duration time.Duration, success bool) {
	m.processingTime.Set(duration.Seconds())
	m.lastRun.SetToCurrentTime()
	if success {
		m.lastSuccess.Set(1)
	} else {
		m.lastSuccess.Set(0)
	}
}

// WriteTextfile writes the registry in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
