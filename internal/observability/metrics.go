package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	boardOnce    sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bboard",
			Subsystem: "protocol",
			Name:      "commands_total",
			Help:      "Protocol commands handled, by verb and reply status.",
		},
		[]string{"verb", "status"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bboard",
			Subsystem: "protocol",
			Name:      "command_duration_seconds",
			Help:      "Time spent dispatching one command, excluding socket writes.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"verb"},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bboard",
			Subsystem: "session",
			Name:      "opened_total",
			Help:      "Sessions opened, by transport.",
		},
		[]string{"transport"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bboard",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently serving.",
		},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bboard",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Session lifetime from handshake to close.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"transport", "reason"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			commands,
			commandDuration,
			sessionsTotal,
			sessionsActive,
			sessionDuration,
		)
	})
}

// BoardStatsFunc reports live note and pin counts.
type BoardStatsFunc func() (notes, pins int)

// RegisterBoardGauges exposes board contents as gauges. Only the first call registers.
func RegisterBoardGauges(stats BoardStatsFunc) {
	boardOnce.Do(func() {
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "bboard",
				Subsystem: "board",
				Name:      "notes",
				Help:      "Notes currently on the board.",
			}, func() float64 {
				n, _ := stats()
				return float64(n)
			}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "bboard",
				Subsystem: "board",
				Name:      "pins",
				Help:      "Pins currently on the board.",
			}, func() float64 {
				_, p := stats()
				return float64(p)
			}),
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCommand(verb, status string, duration time.Duration) {
	RegisterMetrics()
	commands.WithLabelValues(verb, status).Inc()
	commandDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

func SessionOpened(transport string) {
	RegisterMetrics()
	sessionsTotal.WithLabelValues(transport).Inc()
	sessionsActive.Inc()
}

func SessionClosed(transport, reason string, lifetime time.Duration) {
	RegisterMetrics()
	sessionsActive.Dec()
	sessionDuration.WithLabelValues(transport, reason).Observe(lifetime.Seconds())
}
