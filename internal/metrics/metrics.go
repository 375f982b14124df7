package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuthVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "titletester_auth_verifications_total",
			Help: "ID token verifications by outcome",
		},
		[]string{"outcome"}, // ok|invalid_token|expired_token|auth_failed|unavailable
	)

	QuotaUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "titletester_youtube_quota_units_total",
			Help: "YouTube Data API quota units recorded by operation",
		},
		[]string{"operation"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "titletester_rate_limited_total",
			Help: "Requests rejected by the per-user rate limiter",
		},
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors once per process; repeated calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{AuthVerificationsTotal, QuotaUnitsTotal, RateLimitedTotal} {
			if err := r.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if errors.As(err, &are) {
					continue
				}
				panic(err)
			}
		}
	})
}
