package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesEncoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nlc9_frames_encoded_total", Help: "Frames encoded, by verb name"},
		[]string{"verb"},
	)
	FramesDecoded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "nlc9_frames_decoded_total", Help: "Frames decoded successfully"},
	)
	DecodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nlc9_decode_failures_total", Help: "Frame decode failures, by reason"},
		[]string{"reason"},
	)
	MessagesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swarm_messages_routed_total", Help: "Messages delivered by the router, by kind"},
		[]string{"kind"},
	)
	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swarm_messages_dropped_total", Help: "Messages dropped by the router, by reason"},
		[]string{"reason"},
	)
	VotesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swarm_votes_recorded_total", Help: "Consensus votes recorded"},
	)
	BallotsResolved = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swarm_ballots_resolved_total", Help: "Ballots that reached quorum"},
	)
	BallotsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swarm_ballots_expired_total", Help: "Ballots dropped after the TTL elapsed"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swarm_trades_total", Help: "Trades submitted, by agent and outcome"},
		[]string{"agent", "outcome"},
	)
	RebalanceThrottles = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swarm_rebalance_throttles_total", Help: "Risk throttles applied to underperformers"},
	)
	AgentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "swarm_agent_state", Help: "Current agent state as an enum value"},
		[]string{"agent"},
	)
)

func init() {
	prometheus.MustRegister(
		FramesEncoded, FramesDecoded, DecodeFailures,
		MessagesRouted, MessagesDropped,
		VotesRecorded, BallotsResolved, BallotsExpired,
		TradesTotal, RebalanceThrottles, AgentState,
	)
}

// Serve exposes /metrics on addr in a background goroutine.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
