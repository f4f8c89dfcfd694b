package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus registry and the store's meters.
// All recording methods are safe on a nil *Metrics.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	BytesProcessed    *prometheus.CounterVec
	ObjectsTotal      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics creates a private registry with the scs meters registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scs_operation_duration_seconds",
		Help:    "Duration of store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scs_operation_total",
		Help: "Total number of store operations.",
	}, []string{"operation", "status"})

	bytesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scs_bytes_processed_total",
		Help: "Total payload bytes stored (in) or loaded (out).",
	}, []string{"direction"})

	objectsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scs_objects_total",
		Help: "Objects touched, by kind and result (written, deduplicated, removed, verified).",
	}, []string{"kind", "result"})

	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scs_errors_total",
		Help: "Total number of errors by operation and type.",
	}, []string{"operation", "type"})

	reg.MustRegister(opDuration, opTotal, bytesProcessed, objectsTotal, errorsTotal)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		BytesProcessed:    bytesProcessed,
		ObjectsTotal:      objectsTotal,
		ErrorsTotal:       errorsTotal,
	}
}

// AddBytes counts payload bytes in the given direction ("in" or "out").
func (m *Metrics) AddBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesProcessed.WithLabelValues(direction).Add(float64(n))
}

// CountObject records one object of kind with the given result.
func (m *Metrics) CountObject(kind, result string) {
	if m == nil {
		return
	}
	m.ObjectsTotal.WithLabelValues(kind, result).Inc()
}

// CountError records a failure of operation classified as errType.
func (m *Metrics) CountError(operation, errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(operation, errType).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node-exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
