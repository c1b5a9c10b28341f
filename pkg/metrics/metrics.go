// Package metrics provides Prometheus instrumentation for the boot
// artifact servers. All recorder methods are safe on a nil receiver so
// callers can run without metrics wired in.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	transfersTotal    *prometheus.CounterVec
	transferBytes     prometheus.Counter
	tftpErrorsTotal   *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	return &Metrics{
		registry: reg,
		transfersTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bootserver_tftp_transfers_total",
				Help: "Total number of TFTP transfers by result",
			},
			[]string{"result"}, // "completed", "aborted", "rejected"
		),
		transferBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "bootserver_tftp_transfer_bytes_total",
				Help: "Total number of file bytes sent over TFTP",
			},
		),
		tftpErrorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bootserver_tftp_errors_total",
				Help: "Total number of TFTP ERROR packets sent by error code",
			},
			[]string{"code"},
		),
		httpRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bootserver_http_requests_total",
				Help: "Total number of HTTP requests by status code",
			},
			[]string{"status"},
		),
	}
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordTransfer(result string) {
	if m == nil {
		return
	}

	m.transfersTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTransferBytes(n int) {
	if m == nil {
		return
	}

	m.transferBytes.Add(float64(n))
}

func (m *Metrics) RecordTftpError(code string) {
	if m == nil {
		return
	}

	m.tftpErrorsTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordHTTPRequest(status string) {
	if m == nil {
		return
	}

	m.httpRequestsTotal.WithLabelValues(status).Inc()
}
