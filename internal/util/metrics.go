package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected or failed order creations",
	}, []string{"reason"})

	OrderValueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_value_total",
		Help: "Sum of order totals in store currency",
	})

	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"to"})

	OrdersByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orders_by_status",
		Help: "Current number of orders in each status",
	}, []string{"status"})

	OrderEventsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_recorded_total",
		Help: "Order events consumed by the history worker",
	}, []string{"result"})

	WishlistTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_toggles_total",
		Help: "Total number of wishlist toggles by outcome",
	}, []string{"result"})

	ImageUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_uploads_total",
		Help: "Total number of image uploads by outcome",
	}, []string{"result"})

	ImageUploadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_upload_latency_seconds",
		Help:    "Latency of uploads to the image host",
		Buckets: prometheus.DefBuckets,
	})

	SignInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sign_ins_total",
		Help: "Total number of sign-ins by role",
	}, []string{"role"})

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
