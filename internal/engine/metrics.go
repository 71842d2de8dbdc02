package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("interlock.engine")

var (
	// cyclesTotal counts solved cycles.
	// Labels: result (ok, deadlock, error)
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interlock",
		Name:      "cycles_total",
		Help:      "Cycles solved by the engine, by outcome",
	}, []string{"result"})

	// solveDuration measures RunOneIteration from conjunction to choice.
	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "interlock",
		Name:      "solve_duration_seconds",
		Help:      "Time spent solving one cycle",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	// maximalInteractions tracks how many maximal interactions each cycle offered.
	maximalInteractions = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "interlock",
		Name:      "maximal_interactions",
		Help:      "Maximal interactions available per cycle",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)
