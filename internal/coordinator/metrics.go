package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("interlock.coordinator")

var (
	// informsTotal counts informs.
	// Labels: result (accepted, duplicate, rejected)
	informsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interlock",
		Name:      "informs_total",
		Help:      "Informs received from components, by outcome",
	}, []string{"result"})

	liveComponents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "interlock",
		Name:      "live_components",
		Help:      "Components currently registered",
	})

	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "interlock",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent executing a chosen interaction on every component",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)
