package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes relay-level counters. Registration is optional; a nil
// Metrics value disables collection.
type Metrics struct {
	transfersTotal   *prometheus.CounterVec
	bytesTransferred prometheus.Counter
	transferSeconds  prometheus.Histogram
	linksIssued      prometheus.Counter
}

// NewMetrics creates and registers the relay metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fileferry",
			Name:      "transfers_total",
			Help:      "Transfers by strategy and terminal state.",
		}, []string{"strategy", "state"}),
		bytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fileferry",
			Name:      "bytes_transferred_total",
			Help:      "Bytes successfully stored.",
		}),
		transferSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fileferry",
			Name:      "transfer_duration_seconds",
			Help:      "Wall time of completed transfers.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		linksIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fileferry",
			Name:      "links_issued_total",
			Help:      "Retrieval links minted.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.transfersTotal, m.bytesTransferred, m.transferSeconds, m.linksIssued)
	}
	return m
}

func (m *Metrics) observeTransfer(strategy, state string, bytes int64, seconds float64) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(strategy, state).Inc()
	if bytes > 0 {
		m.bytesTransferred.Add(float64(bytes))
	}
	if seconds > 0 {
		m.transferSeconds.Observe(seconds)
	}
}

func (m *Metrics) observeLink() {
	if m == nil {
		return
	}
	m.linksIssued.Inc()
}
