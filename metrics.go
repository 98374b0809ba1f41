package corpus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics holds the store's prometheus counters. All methods are
// nil-safe so an unconfigured store pays only a nil check.
type storeMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	coldReads prometheus.Counter
	notFounds prometheus.Counter
	drifts    prometheus.Counter
}

// WithMetrics registers the store's counters with reg and enables
// collection. Passing nil leaves metrics disabled.
func WithMetrics(reg prometheus.Registerer) StoreOption {
	return func(s *Store) {
		if reg == nil {
			return
		}
		s.metrics = newStoreMetrics(reg)
	}
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	factory := promauto.With(reg)
	return &storeMetrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "corpus_cache_hits_total",
			Help: "Content requests served from the in-memory cache.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "corpus_cache_misses_total",
			Help: "Content requests that missed the in-memory cache.",
		}),
		coldReads: factory.NewCounter(prometheus.CounterOpts{
			Name: "corpus_cold_reads_total",
			Help: "Content files read from the asset bundle.",
		}),
		notFounds: factory.NewCounter(prometheus.CounterOpts{
			Name: "corpus_not_found_total",
			Help: "Lookups for keys absent from the index.",
		}),
		drifts: factory.NewCounter(prometheus.CounterOpts{
			Name: "corpus_drift_errors_total",
			Help: "Indexed files found missing, unreadable, or corrupt on disk.",
		}),
	}
}

func (m *storeMetrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *storeMetrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *storeMetrics) coldRead() {
	if m != nil {
		m.coldReads.Inc()
	}
}

func (m *storeMetrics) notFound() {
	if m != nil {
		m.notFounds.Inc()
	}
}

func (m *storeMetrics) drift() {
	if m != nil {
		m.drifts.Inc()
	}
}
