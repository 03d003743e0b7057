package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector on top of a prometheus.Registerer,
// creating and registering metrics lazily on first use.
type Prometheus struct {
	registry prometheus.Registerer

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates a collector. If registry is nil,
// prometheus.DefaultRegisterer is used.
func NewPrometheus(registry prometheus.Registerer) *Prometheus {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

func (p *Prometheus) IncCounter(name string, delta int64) {
	c := getOrCreate(p, p.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: name})
	})
	c.Add(float64(delta))
}

func (p *Prometheus) SetGauge(name string, value float64) {
	g := getOrCreate(p, p.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: name})
	})
	g.Set(value)
}

func (p *Prometheus) ObserveHistogram(name string, value float64) {
	h := getOrCreate(p, p.histograms, name, func() prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		})
	})
	h.Observe(value)
}

// getOrCreate returns the metric cached under name, registering a new one
// built by create when absent. A metric already present in the registry
// (for example from a second collector sharing it) is reused.
func getOrCreate[M prometheus.Collector](p *Prometheus, cache map[string]M, name string, create func() M) M {
	p.mu.RLock()
	m, ok := cache[name]
	p.mu.RUnlock()
	if ok {
		return m
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok = cache[name]; ok {
		return m
	}

	m = create()
	if err := p.registry.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				m = existing
			}
		}
	}
	cache[name] = m
	return m
}
