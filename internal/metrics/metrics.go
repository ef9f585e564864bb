package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// チェックアウトの結果を数えるカウンタ群。
type CheckoutMetrics struct {
	OrdersPlaced    *prometheus.CounterVec
	PaymentFailures *prometheus.CounterVec
	StaleSettles    prometheus.Counter
	RefundsFlagged  prometheus.Counter
}

func NewCheckoutMetrics() *CheckoutMetrics {
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "orders_placed_total",
		Help:      "Total number of orders created.",
	}, []string{"method", "source"})

	paymentFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "payment_failures_total",
		Help:      "Total number of failed payment executions.",
	}, []string{"method"})

	staleSettles := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "stale_settlements_discarded_total",
		Help:      "Settlements discarded because the attempt was superseded.",
	})

	refundsFlagged := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "refunds_flagged_total",
		Help:      "Captured payments flagged for refund because the order could not be placed.",
	})

	prometheus.MustRegister(ordersPlaced, paymentFailures, staleSettles, refundsFlagged)
	return &CheckoutMetrics{
		OrdersPlaced:    ordersPlaced,
		PaymentFailures: paymentFailures,
		StaleSettles:    staleSettles,
		RefundsFlagged:  refundsFlagged,
	}
}

// テストではnilで動かせるようにする
func (m *CheckoutMetrics) OrderPlaced(method string, source string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(method, source).Inc()
}

func (m *CheckoutMetrics) PaymentFailed(method string) {
	if m == nil {
		return
	}
	m.PaymentFailures.WithLabelValues(method).Inc()
}

func (m *CheckoutMetrics) StaleSettleDiscarded() {
	if m == nil {
		return
	}
	m.StaleSettles.Inc()
}

func (m *CheckoutMetrics) RefundFlagged() {
	if m == nil {
		return
	}
	m.RefundsFlagged.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
