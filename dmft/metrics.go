// SPDX-License-Identifier: MIT
package dmft

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the per-iteration observables of a run.
type Metrics struct {
	Iterations        prometheus.Counter
	IterationDuration prometheus.Histogram
	ChemicalPotential prometheus.Gauge
	TotalDensity      prometheus.Gauge
	DCEnergy          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg; a nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hubbardi",
			Subsystem: "dmft",
			Name:      "iterations_total",
			Help:      "Completed DMFT iterations",
		}),
		IterationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hubbardi",
			Subsystem: "dmft",
			Name:      "iteration_duration_seconds",
			Help:      "Wall time of one DMFT iteration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		ChemicalPotential: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hubbardi",
			Subsystem: "dmft",
			Name:      "chemical_potential",
			Help:      "Chemical potential after the last iteration",
		}),
		TotalDensity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hubbardi",
			Subsystem: "dmft",
			Name:      "total_density",
			Help:      "Total charge of the local Green's function",
		}),
		DCEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hubbardi",
			Subsystem: "dmft",
			Name:      "dc_energy",
			Help:      "Double-counting energy of the last iteration",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Iterations, m.IterationDuration, m.ChemicalPotential, m.TotalDensity, m.DCEnergy} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) observe(elapsed time.Duration, mu, density, dcEnergy float64) {
	if m == nil {
		return
	}
	m.Iterations.Inc()
	m.IterationDuration.Observe(elapsed.Seconds())
	m.ChemicalPotential.Set(mu)
	m.TotalDensity.Set(density)
	m.DCEnergy.Set(dcEnergy)
}
