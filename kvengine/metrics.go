package kvengine

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes Prometheus counters for the engine's operation surface.
// Registration is left to the caller (Register), matching how an embedded
// library should behave inside a larger process's metrics namespace.
type Metrics struct {
	Puts        prometheus.Counter
	Gets        prometheus.Counter
	Deletes     prometheus.Counter
	Flushes     prometheus.Counter
	Compactions prometheus.Counter
	Tombstones  prometheus.Counter
}

// NewMetrics builds a fresh, unregistered Metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		Puts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nebula_puts_total",
			Help: "Total number of put operations accepted by the engine.",
		}),
		Gets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nebula_gets_total",
			Help: "Total number of get operations served by the engine.",
		}),
		Deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nebula_deletes_total",
			Help: "Total number of delete operations accepted by the engine.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nebula_flushes_total",
			Help: "Total number of memtable flushes.",
		}),
		Compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nebula_compactions_total",
			Help: "Total number of level merges performed.",
		}),
		Tombstones: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nebula_tombstones_written_total",
			Help: "Total number of tombstones written to the memtable.",
		}),
	}
}

// Register adds every metric to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Puts, m.Gets, m.Deletes, m.Flushes, m.Compactions, m.Tombstones} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
