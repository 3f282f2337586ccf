package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK         = "ok"
	resultDialError  = "dial_error"
	resultReadError  = "read_error"
	resultWriteError = "write_error"

	directionRequest  = "request"
	directionResponse = "response"
)

// Metrics are the Prometheus collectors of one bridge.
type Metrics struct {
	connections *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	duration    prometheus.Histogram
	inFlight    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vsock_bridge",
			Name:      "connections_total",
			Help:      "Relayed connections by result.",
		}, []string{"result"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vsock_bridge",
			Name:      "bytes_total",
			Help:      "Relayed bytes by direction.",
		}, []string{"direction"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vsock_bridge",
			Name:      "exchange_duration_seconds",
			Help:      "Time from accept to the response being written back.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 240},
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "vsock_bridge",
			Name:      "connections_in_flight",
			Help:      "Connections currently being relayed.",
		}),
	}
}
