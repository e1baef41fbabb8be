package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_reservations_created_total",
		Help: "Total number of reservations created, by payment type",
	}, []string{"payment_type"})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_reservations_failed_total",
		Help: "Total number of failed reservation attempts",
	}, []string{"reason"})

	NormalizeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_normalize_failures_total",
		Help: "Total number of backend payloads the normalizer rejected",
	})

	PixChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_pix_checks_total",
		Help: "Total number of PIX status checks, by trigger and outcome",
	}, []string{"trigger", "outcome"})

	FallbackActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_fallback_activations_total",
		Help: "Total number of degraded-gateway fallbacks to manual payment",
	})

	ProofUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_proof_uploads_total",
		Help: "Total number of proof-of-payment uploads, by outcome",
	}, []string{"outcome"})

	ProofRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_proof_rejected_total",
		Help: "Total number of proofs rejected before upload",
	}, []string{"reason"})

	PurchasesReviewedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_purchases_reviewed_total",
		Help: "Total number of seller purchase reviews",
	}, []string{"decision"})

	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_backend_request_duration_seconds",
		Help:    "Latency of calls to the raffle backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	BackendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_backend_errors_total",
		Help: "Total number of backend call failures, by kind",
	}, []string{"operation", "kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
