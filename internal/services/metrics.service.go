package services

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"biteback/internal/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "biteback"

// MetricsService owns the Prometheus registry. A nil *MetricsService records
// nothing.
type MetricsService struct {
	Registry *prometheus.Registry

	vouchersMinted   prometheus.Counter
	vouchersRedeemed prometheus.Counter
	redeemRejected   *prometheus.CounterVec
	proofUploads     *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func NewMetricsService() *MetricsService {
	m := &MetricsService{
		Registry: prometheus.NewRegistry(),
		vouchersMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ledger",
			Name:      "vouchers_minted_total",
			Help:      "Vouchers issued on mission finalize.",
		}),
		vouchersRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "redemption",
			Name:      "vouchers_redeemed_total",
			Help:      "Vouchers successfully redeemed.",
		}),
		redeemRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "redemption",
			Name:      "rejected_total",
			Help:      "Redeem attempts rejected, by reason.",
		}, []string{"reason"}),
		proofUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "proofs",
			Name:      "uploads_total",
			Help:      "Proof image uploads, by result.",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions.",
		}, []string{"job", "success"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
	}

	m.Registry.MustRegister(
		m.vouchersMinted,
		m.vouchersRedeemed,
		m.redeemRejected,
		m.proofUploads,
		m.jobRuns,
		m.httpRequests,
		m.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return m
}

func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *MetricsService) VoucherMinted() {
	if m == nil {
		return
	}
	m.vouchersMinted.Inc()
}

func (m *MetricsService) VoucherRedeemed() {
	if m == nil {
		return
	}
	m.vouchersRedeemed.Inc()
}

// RedeemRejected counts a failed redeem under a label derived from its error kind.
func (m *MetricsService) RedeemRejected(err error) {
	if m == nil || err == nil {
		return
	}

	reason := "other"
	switch {
	case errors.Is(err, types.ErrAlreadyRedeemed):
		reason = "already_redeemed"
	case errors.Is(err, types.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, types.ErrInvalidPayload):
		reason = "invalid_payload"
	case errors.Is(err, types.ErrForbidden):
		reason = "forbidden"
	case errors.Is(err, types.ErrStore):
		reason = "store"
	}
	m.redeemRejected.WithLabelValues(reason).Inc()
}

func (m *MetricsService) ObserveProofUpload(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.proofUploads.WithLabelValues(result).Inc()
}

func (m *MetricsService) ObserveJobRun(job string, err error) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Inc()
}

func (m *MetricsService) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
