package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports room lifecycle counters to Prometheus. All methods on
// Aggregator tolerate a nil Metrics.
type Metrics struct {
	RoomsOpened   prometheus.Counter
	RoomsClosed   prometheus.Counter
	UsersSeen     prometheus.Counter
	SecretsShared prometheus.Counter
	ActiveRooms   prometheus.Gauge
	ShadowsOnline prometheus.Gauge
}

// NewMetrics registers the counters with reg. Pass
// prometheus.DefaultRegisterer for the /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RoomsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "anochat_rooms_opened_total",
			Help: "Rooms created since process start.",
		}),
		RoomsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "anochat_rooms_closed_total",
			Help: "Rooms destroyed since process start.",
		}),
		UsersSeen: factory.NewCounter(prometheus.CounterOpts{
			Name: "anochat_users_seen_total",
			Help: "Successful registrations since process start.",
		}),
		SecretsShared: factory.NewCounter(prometheus.CounterOpts{
			Name: "anochat_secrets_shared_total",
			Help: "Messages counted from closed rooms since process start.",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "anochat_active_rooms",
			Help: "Rooms currently open.",
		}),
		ShadowsOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "anochat_shadows_online",
			Help: "Participants currently connected and registered.",
		}),
	}
}
