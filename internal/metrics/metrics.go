package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline instruments.
type Metrics struct {
	PacketsScanned   prometheus.Counter
	TransportPackets prometheus.Counter
	DecodeSkips      prometheus.Counter
	CacheLookups     *prometheus.CounterVec
	Runs             *prometheus.CounterVec
	FlowsBuilt       prometheus.Gauge
	FlowsCleaned     prometheus.Gauge
	ExtraFlows       prometheus.Gauge
	ScanDuration     prometheus.Histogram
}

// New creates the pipeline metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsScanned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowspectra_packets_scanned_total",
				Help: "Packets read from captures during full scans.",
			},
		),
		TransportPackets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowspectra_transport_packets_total",
				Help: "TCP/UDP packets recorded into flows.",
			},
		),
		DecodeSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowspectra_decode_skips_total",
				Help: "TCP/UDP packets excluded from flows because their transport fields could not be read.",
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowspectra_cache_lookups_total",
				Help: "Cache lookups by artifact kind and result (hit, miss).",
			},
			[]string{"artifact", "result"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowspectra_runs_total",
				Help: "Pipeline runs by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		FlowsBuilt: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowspectra_flows_built",
				Help: "Raw flows in the last analyzed capture.",
			},
		),
		FlowsCleaned: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowspectra_flows_cleaned",
				Help: "Flows left after cleaning in the last analyzed capture.",
			},
		),
		ExtraFlows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowspectra_inactivity_extra_flows",
				Help: "Flows added by inactivity splitting in the last analyzed capture.",
			},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowspectra_scan_duration_seconds",
				Help:    "Wall time of full capture scans.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
	}
	reg.MustRegister(
		m.PacketsScanned,
		m.TransportPackets,
		m.DecodeSkips,
		m.CacheLookups,
		m.Runs,
		m.FlowsBuilt,
		m.FlowsCleaned,
		m.ExtraFlows,
		m.ScanDuration,
	)
	return m
}

// ObserveCacheLookup records one cache lookup.
func (m *Metrics) ObserveCacheLookup(artifact string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(artifact, result).Inc()
}
