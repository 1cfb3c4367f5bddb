package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the auth gateway.
type Metrics struct {
	LoginSuccess    prometheus.Counter
	LoginFailure    prometheus.Counter
	LoginPrevented  prometheus.Counter
	TokenRefreshes  prometheus.Counter
	RefreshFailures prometheus.Counter
	LoginDuration   prometheus.Histogram
}

// New creates and registers all Prometheus metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in main; tests pass a fresh registry so
// multiple instances never collide.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		LoginSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "sterihub_auth_login_success_total",
			Help: "Total number of successful logins",
		}),
		LoginFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "sterihub_auth_login_failure_total",
			Help: "Total number of failed login attempts",
		}),
		LoginPrevented: factory.NewCounter(prometheus.CounterOpts{
			Name: "sterihub_auth_login_prevented_total",
			Help: "Total number of login attempts blocked by rate limiting or lockout",
		}),
		TokenRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "sterihub_auth_token_refresh_total",
			Help: "Total number of successful token refreshes",
		}),
		RefreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sterihub_auth_token_refresh_failure_total",
			Help: "Total number of failed token refreshes",
		}),
		LoginDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sterihub_auth_login_duration_seconds",
			Help:    "Wall-clock duration of login attempts",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
