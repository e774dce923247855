package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines our Prometheus metrics
type Metrics struct {
	ActiveRooms       prometheus.Gauge
	ActiveConnections prometheus.Gauge
	FramesIn          prometheus.Counter
	FramesOut         prometheus.Counter
	FramesDropped     prometheus.Counter
	CompressedFrames  prometheus.Counter
	BarrierTimeouts   prometheus.Counter
	CommandsRejected  prometheus.Counter
	SessionsExpired   prometheus.Counter
	KickCount         prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auxroom_active_rooms",
			Help: "Number of live listening rooms",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auxroom_active_connections",
			Help: "Number of open websocket connections",
		}),
		FramesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auxroom_frames_in_total",
			Help: "Protocol frames received from clients",
		}),
		FramesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auxroom_frames_out_total",
			Help: "Protocol frames sent to clients",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auxroom_frames_dropped_total",
			Help: "Frames dropped because a client send buffer was full",
		}),
		CompressedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auxroom_compressed_frames_total",
			Help: "Outbound frames whose payload was sent compressed",
		}),
		BarrierTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auxroom_barrier_timeouts_total",
			Help: "Buffer barriers that proceeded without all listeners",
		}),
		CommandsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auxroom_commands_rejected_total",
			Help: "Commands rejected due to a full room command queue",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auxroom_sessions_expired_total",
			Help: "Sessions dropped after the reconnect grace period",
		}),
		KickCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auxroom_kicks_total",
			Help: "Users kicked by a host",
		}),
	}

	reg.MustRegister(
		m.ActiveRooms,
		m.ActiveConnections,
		m.FramesIn,
		m.FramesOut,
		m.FramesDropped,
		m.CompressedFrames,
		m.BarrierTimeouts,
		m.CommandsRejected,
		m.SessionsExpired,
		m.KickCount,
	)
	return m
}
