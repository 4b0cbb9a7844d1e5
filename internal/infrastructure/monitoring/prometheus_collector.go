package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	roomsActive    prometheus.Gauge
	membersOnline  prometheus.Gauge
	sessionsTotal  prometheus.Counter
	joinsTotal     prometheus.Counter
	signalsRelayed prometheus.Counter
	relayedBytes   prometheus.Counter

	roomLifetime prometheus.Histogram

	roomMemberCount *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return NewPrometheusCollectorWith(prometheus.DefaultRegisterer)
}

// NewPrometheusCollectorWith registers all collectors against reg. Tests
// pass a fresh registry so constructing a second collector does not panic
// on duplicate registration.
func NewPrometheusCollectorWith(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parlor_rooms_active",
			Help: "Number of currently open rooms",
		}),

		membersOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parlor_members_online",
			Help: "Number of members currently connected across all rooms",
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_signal_sessions_total",
			Help: "Total number of accepted signaling sessions",
		}),

		joinsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_room_joins_total",
			Help: "Total number of successful room joins",
		}),

		signalsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_signals_relayed_total",
			Help: "Total number of signaling payloads relayed between peers",
		}),

		relayedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_signal_relayed_bytes_total",
			Help: "Total size of relayed signaling payloads in bytes",
		}),

		roomLifetime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parlor_room_lifetime_seconds",
			Help:    "How long rooms stay open",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),

		roomMemberCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "parlor_room_member_count",
			Help: "Number of members per room",
		}, []string{"room"}),
	}
}

func (p *PrometheusCollector) RecordSessionAccepted() {
	p.sessionsTotal.Inc()
}

func (p *PrometheusCollector) RecordRoomCreated(room string) {
	p.roomsActive.Inc()
	p.membersOnline.Inc()
	p.roomMemberCount.WithLabelValues(room).Set(1)
}

func (p *PrometheusCollector) RecordRoomClosed(room string, openedAt time.Time, members int) {
	p.roomsActive.Dec()
	p.membersOnline.Sub(float64(members))
	p.roomLifetime.Observe(time.Since(openedAt).Seconds())
	p.roomMemberCount.DeleteLabelValues(room)
}

func (p *PrometheusCollector) RecordMemberJoined(room string) {
	p.joinsTotal.Inc()
	p.membersOnline.Inc()
	p.roomMemberCount.WithLabelValues(room).Inc()
}

func (p *PrometheusCollector) RecordMemberLeft(room string) {
	p.membersOnline.Dec()
	p.roomMemberCount.WithLabelValues(room).Dec()
}

func (p *PrometheusCollector) RecordSignalRelayed(payloadBytes int) {
	p.signalsRelayed.Inc()
	p.relayedBytes.Add(float64(payloadBytes))
}
