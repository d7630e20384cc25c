package cache

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache traffic per entity.
type Metrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewMetrics registers the cache collectors. Collectors that are already
// registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iam_cache_hits_total",
			Help: "Number of cache hits per entity.",
		}, []string{"entity"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iam_cache_miss_total",
			Help: "Number of cache misses per entity.",
		}, []string{"entity"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iam_cache_evictions_total",
			Help: "Number of evicted cache keys per entity.",
		}, []string{"entity"}),
	}
	for _, target := range []**prometheus.CounterVec{&m.hits, &m.misses, &m.evictions} {
		if err := reg.Register(*target); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
			existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, fmt.Errorf("cache metrics: unexpected collector type %T", already.ExistingCollector)
			}
			*target = existing
		}
	}
	return m, nil
}

func (m *Metrics) hit(key Key) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(key.entity()).Inc()
}

func (m *Metrics) miss(key Key) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(key.entity()).Inc()
}

func (m *Metrics) evicted(keys []Key) {
	if m == nil {
		return
	}
	for _, key := range keys {
		m.evictions.WithLabelValues(key.entity()).Inc()
	}
}
