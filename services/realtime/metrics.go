package realtimesvc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fitprize/fitprize/core/school"
)

// Metrics are the prometheus collectors of the real-time fan-out and of the minutes updates.
type Metrics struct {
	Clients        prometheus.Gauge
	Events         *prometheus.CounterVec
	DroppedClients prometheus.Counter
	DroppedEvents  prometheus.Counter
	Minutes        prometheus.Counter
	PrizesEarned   prometheus.Counter
}

var _ school.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "fitprize",
			Subsystem: "realtime",
			Name:      "clients",
			Help:      "Number of connected real-time clients.",
		}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitprize",
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Number of events delivered to a room, by event name.",
		}, []string{"event"}),
		DroppedClients: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fitprize",
			Subsystem: "realtime",
			Name:      "dropped_clients_total",
			Help:      "Number of clients disconnected because their send buffer was full.",
		}),
		DroppedEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fitprize",
			Subsystem: "realtime",
			Name:      "dropped_events_total",
			Help:      "Number of events discarded because the hub queue was full.",
		}),
		Minutes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fitprize",
			Name:      "fitness_minutes_total",
			Help:      "Fitness minutes recorded on classes.",
		}),
		PrizesEarned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fitprize",
			Name:      "prizes_earned_total",
			Help:      "Prizes earned by classes.",
		}),
	}
}

func (m *Metrics) MinutesAdded(_ string, minutes, newEarnedPrizes int) {
	m.Minutes.Add(float64(minutes))
	m.PrizesEarned.Add(float64(newEarnedPrizes))
}
