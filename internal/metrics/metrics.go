package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_notifications_total",
			Help: "Total number of push send attempts.",
		},
		[]string{"type", "result"},
	)

	SweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total number of sweep invocations.",
		},
		[]string{"sweep"},
	)

	SweepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of full sweep runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 3, 8),
		},
		[]string{"sweep"},
	)

	WeatherFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_fetches_total",
			Help: "Total number of weather provider calls.",
		},
		[]string{"endpoint", "result"},
	)

	SubscriptionsDeactivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_deactivated_total",
			Help: "Subscriptions deactivated after a permanent push failure.",
		},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		NotificationsTotal,
		SweepRunsTotal,
		SweepDurationSeconds,
		WeatherFetchesTotal,
		SubscriptionsDeactivatedTotal,
	)
}
