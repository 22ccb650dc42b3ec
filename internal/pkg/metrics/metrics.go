// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	checkoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	couponValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_coupon_validations_total",
			Help: "Coupon validations by result",
		},
		[]string{"result"},
	)

	stockReservationConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_stock_reservation_conflicts_total",
			Help: "Conditional stock decrements that affected no rows",
		},
	)

	nonFatalFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_nonfatal_failures_total",
			Help: "Swallowed failures after payment, by step",
		},
		[]string{"step"},
	)

	notificationsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_notifications_handled_total",
			Help: "Order confirmation messages handled by the worker",
		},
		[]string{"status"},
	)
)

// RecordCheckout 记录结账结果，outcome 取值如 success / stock_error / payment_error
func RecordCheckout(outcome string) {
	checkoutTotal.WithLabelValues(outcome).Inc()
}

// RecordCouponValidation 记录优惠券校验结果，result 为 valid 或失败原因码
func RecordCouponValidation(result string) {
	couponValidations.WithLabelValues(result).Inc()
}

func RecordStockConflict() {
	stockReservationConflicts.Inc()
}

func RecordNonFatalFailure(step string) {
	nonFatalFailures.WithLabelValues(step).Inc()
}

func RecordNotificationHandled(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	notificationsHandled.WithLabelValues(status).Inc()
}
