package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DefaultRegisterer and DefaultGatherer are the implementations of the
	// prometheus Registerer and Gatherer interfaces that all metrics operations
	// will use. They are variables so that packages that embed this library can
	// replace them at runtime, instead of having to pass around specific
	// registries.
	DefaultRegisterer = prometheus.DefaultRegisterer
	DefaultGatherer   = prometheus.DefaultGatherer
)

var (
	OpenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threadgate_open_total",
		Help: "Total number of open operations by outcome.",
	}, []string{"kind", "outcome"})
	CloseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threadgate_close_total",
		Help: "Total number of close operations by outcome.",
	}, []string{"kind", "outcome"})
	WaitDurHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "threadgate_wait_duration_seconds",
		Help: "Time spent parked waiting for a permit.",
	}, []string{"kind"})
)

func Register() {
	DefaultRegisterer.MustRegister(OpenTotal)
	DefaultRegisterer.MustRegister(CloseTotal)
	DefaultRegisterer.MustRegister(WaitDurHistogram)
}
