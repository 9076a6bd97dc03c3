// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sessions
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recipe_road_sessions_active",
		Help: "Number of recipe sessions held in memory",
	})

	SessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipe_road_sessions_expired_total",
		Help: "Sessions removed by the idle sweeper",
	})

	VoiceSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recipe_road_voice_sessions_active",
		Help: "Number of live assistant relays",
	})

	// Relay traffic
	RelayFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_road_relay_frames_total",
		Help: "Frames forwarded by the assistant relay",
	}, []string{"direction", "kind"})

	RealtimeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_road_realtime_events_total",
		Help: "Events received from the realtime endpoint, by remote type",
	}, []string{"type"})

	RelayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_road_relay_errors_total",
		Help: "Relay sessions that ended abnormally, by stage",
	}, []string{"stage"})

	// Recipe model calls
	RecipeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_road_recipe_requests_total",
		Help: "Recipe model calls, by operation and outcome",
	}, []string{"operation", "status"})

	RecipeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recipe_road_recipe_latency_seconds",
		Help:    "Latency of recipe model calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
