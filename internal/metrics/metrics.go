package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	analysisDuration *prometheus.HistogramVec
	analysesTotal    *prometheus.CounterVec
	particlesTotal   prometheus.Counter
	collidedTotal    prometheus.Counter
	pairSpaceTotal   prometheus.Counter
	rejectedTotal    *prometheus.CounterVec
}

// NewCollector registers the analysis metrics on a private registry, so
// several collectors can coexist (tests, multiple servers).
func NewCollector() *Collector {
	m := &Collector{
		reg: prometheus.NewRegistry(),
		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swarm_analysis_duration_seconds",
				Help:    "Time spent analysing one particle list",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"mode"},
		),
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_analyses_total",
				Help: "Total number of analyses by outcome",
			},
			[]string{"outcome"},
		),
		particlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swarm_particles_total",
			Help: "Particles analysed",
		}),
		collidedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swarm_collided_particles_total",
			Help: "Particles found to collide with at least one other",
		}),
		pairSpaceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swarm_pair_space_total",
			Help: "Unordered particle pairs in analysed inputs, n*(n-1)/2 per analysis",
		}),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_requests_rejected_total",
				Help: "Requests rejected before analysis, by error code",
			},
			[]string{"code"},
		),
	}

	m.reg.MustRegister(m.analysisDuration)
	m.reg.MustRegister(m.analysesTotal)
	m.reg.MustRegister(m.particlesTotal)
	m.reg.MustRegister(m.collidedTotal)
	m.reg.MustRegister(m.pairSpaceTotal)
	m.reg.MustRegister(m.rejectedTotal)

	return m
}

// RecordAnalysis records one finished analysis of n particles.
func (m *Collector) RecordAnalysis(compat bool, n, collided int, duration time.Duration) {
	if m == nil {
		return
	}
	mode := "exact"
	if compat {
		mode = "reference"
	}
	m.analysisDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.analysesTotal.WithLabelValues("ok").Inc()
	m.particlesTotal.Add(float64(n))
	m.collidedTotal.Add(float64(collided))
	m.pairSpaceTotal.Add(float64(n) * float64(n-1) / 2)
}

func (m *Collector) RecordRejected(code string) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues("error").Inc()
	m.rejectedTotal.WithLabelValues(code).Inc()
}

func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
