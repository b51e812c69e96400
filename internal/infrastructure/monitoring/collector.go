package monitoring

import (
	"time"

	"harmony/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes voice session telemetry to Prometheus.
type Collector struct {
	joinsTotal        *prometheus.CounterVec
	joinFailuresTotal prometheus.Counter
	joinDuration      prometheus.Histogram
	connected         prometheus.Gauge
	participantCount  prometheus.Gauge
}

func NewCollector() *Collector {
	return &Collector{
		joinsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_voice_joins_total",
			Help: "Successful voice session joins by context type",
		}, []string{"context"}),

		joinFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harmony_voice_join_failures_total",
			Help: "Voice session join attempts that failed",
		}),

		joinDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harmony_voice_join_duration_seconds",
			Help:    "Time from join request to connected state",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),

		connected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harmony_voice_connected",
			Help: "Whether a voice session is currently active (0 or 1)",
		}),

		participantCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harmony_voice_participants",
			Help: "Remote participants visible in the current session",
		}),
	}
}

func (c *Collector) RecordJoin(contextType domain.ContextType) {
	c.joinsTotal.WithLabelValues(string(contextType)).Inc()
}

func (c *Collector) RecordJoinFailure() {
	c.joinFailuresTotal.Inc()
}

func (c *Collector) ObserveJoinDuration(d time.Duration) {
	c.joinDuration.Observe(d.Seconds())
}

func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.connected.Set(1)
	} else {
		c.connected.Set(0)
	}
}

func (c *Collector) SetParticipantCount(n int) {
	c.participantCount.Set(float64(n))
}
