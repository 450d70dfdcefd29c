package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Checkouts         *prometheus.CounterVec
	WebhookEvents     *prometheus.CounterVec
	ReservationsSwept prometheus.Counter
	CheckoutLatency   prometheus.Histogram
}

func New(service string) *Metrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: service,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: service,
		Name:      "webhook_events_total",
		Help:      "Webhook deliveries by provider and result.",
	}, []string{"provider", "result"})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: service,
		Name:      "reservations_swept_total",
		Help:      "Expired reservations released by the sweeper.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "commerce",
		Subsystem: service,
		Name:      "checkout_duration_ms",
		Help:      "Checkout latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	prometheus.MustRegister(checkouts, webhooks, swept, latency)
	return &Metrics{
		Checkouts:         checkouts,
		WebhookEvents:     webhooks,
		ReservationsSwept: swept,
		CheckoutLatency:   latency,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
