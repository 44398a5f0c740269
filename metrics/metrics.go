// Package metrics exposes upload counters for daemon mode.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the upload collectors and their registry.
type Metrics struct {
	Registry *prometheus.Registry

	requests    *prometheus.CounterVec
	filesStored prometheus.Counter
	bytesStored prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upload",
			Name:      "requests_total",
			Help:      "Upload requests by method and response status.",
		}, []string{"method", "status"}),
		filesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "upload",
			Name:      "files_stored_total",
			Help:      "Files written to the upload directory.",
		}),
		bytesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "upload",
			Name:      "request_bytes_total",
			Help:      "Request body bytes of successful uploads.",
		}),
	}
	m.Registry.MustRegister(
		m.requests,
		m.filesStored,
		m.bytesStored,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one handled request.
func (m *Metrics) Observe(method string, status, files int, bodySize int64) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	if files > 0 {
		m.filesStored.Add(float64(files))
		m.bytesStored.Add(float64(bodySize))
	}
}
