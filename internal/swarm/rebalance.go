package swarm

import (
	"github.com/rs/zerolog"

	"nlc9-swarm/internal/agent"
)

const (
	// Agents below this fraction of the fleet's mean profit get throttled.
	underperformFraction = 0.5
	throttleDamping      = 0.80
	throttleStep         = 1

	// Fraction of above-mean excess redistributed when profit sharing is on.
	profitShareFraction = 0.10
)

// Rebalancer periodically reins in underperformers and, when enabled,
// redistributes part of the leaders' excess to the laggards.
type Rebalancer struct {
	profitSharing bool
	log           zerolog.Logger
}

func NewRebalancer(profitSharing bool, log zerolog.Logger) *Rebalancer {
	return &Rebalancer{profitSharing: profitSharing, log: log}
}

// Apply runs one rebalancing pass over the fleet. Halted agents are left
// alone; their books are frozen.
func (r *Rebalancer) Apply(agents []*agent.Agent) {
	active := make([]*agent.Agent, 0, len(agents))
	for _, a := range agents {
		if !a.Halted() {
			active = append(active, a)
		}
	}
	if len(active) < 2 {
		return
	}

	var total float64
	for _, a := range active {
		total += a.Profit()
	}
	mean := total / float64(len(active))

	// The baseline holds even when the fleet is losing overall: with a
	// negative mean the half-mean cutoff sits above it, so the worst
	// losers still get reined in.
	for _, a := range active {
		if a.Profit() < mean*underperformFraction {
			a.ThrottleRisk(throttleDamping, throttleStep)
			r.log.Info().Str("agent", a.ID).Float64("profit", a.Profit()).
				Float64("mean", mean).Msg("throttling underperformer")
		}
	}

	if r.profitSharing {
		r.share(active, mean)
	}
}

// share moves a slice of each above-mean agent's excess into an even split
// across below-mean agents. Total fleet profit is conserved.
func (r *Rebalancer) share(agents []*agent.Agent, mean float64) {
	var pool float64
	var receivers []*agent.Agent
	for _, a := range agents {
		excess := a.Profit() - mean
		if excess > 0 {
			contribution := excess * profitShareFraction
			a.AddProfit(-contribution)
			pool += contribution
		} else if excess < 0 {
			receivers = append(receivers, a)
		}
	}
	if pool <= 0 || len(receivers) == 0 {
		return
	}
	slice := pool / float64(len(receivers))
	for _, a := range receivers {
		a.AddProfit(slice)
	}
	r.log.Debug().Float64("pool", pool).Int("receivers", len(receivers)).Msg("profit shared")
}
