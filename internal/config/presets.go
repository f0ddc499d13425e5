package config

import (
	"fmt"
	"strings"

	"nlc9-swarm/internal/agent"
)

// RoleCounts describes the fleet composition to generate.
type RoleCounts struct {
	Leaders      int
	Followers    int
	Arbitrage    int
	MarketMakers int
	Scouts       int
	Liquidators  int
}

var defaultPairs = []string{"SOL/USDC", "BONK/SOL", "JUP/USDC"}

// Generate produces a ready-to-run configuration for the requested fleet.
// Roles get the strategy that suits them: leaders trade aggressively,
// followers copy, and everything else runs balanced.
func Generate(counts RoleCounts) *Config {
	cfg := &Config{
		App: App{
			Name:        "nlc9-swarm",
			Env:         "dev",
			MetricsAddr: ":9102",
			LogLevel:    "info",
		},
		Swarm: Swarm{
			Mode:               "CENTRALIZED",
			ConsensusThreshold: 0.6,
			BallotTTLSecs:      300,
			TickIntervalMs:     10_000,
			EmergencyStop:      true,
		},
		Market: Market{Provider: "stub", Pairs: defaultPairs},
		Execution: Execution{
			Venue:       "paper",
			FailureRate: 0.05,
			SlippageBps: 15,
		},
		Gateway: Gateway{Addr: ":8099"},
	}

	add := func(n int, role agent.Role, strat string) {
		for i := 1; i <= n; i++ {
			id := fmt.Sprintf("%s-%d", strings.ToLower(string(role)), i)
			cfg.Agents = append(cfg.Agents, agent.Config{
				ID:       id,
				Role:     role,
				Strategy: strat,
				Pairs:    defaultPairs,
				Capital:  10_000,
			})
		}
	}
	add(counts.Leaders, agent.RoleLeader, "AGGRESSIVE")
	add(counts.Followers, agent.RoleFollower, "COPY_TRADE")
	add(counts.Arbitrage, agent.RoleArbitrage, "BALANCED")
	add(counts.MarketMakers, agent.RoleMarketMaker, "BALANCED")
	add(counts.Scouts, agent.RoleScout, "ADAPTIVE")
	add(counts.Liquidators, agent.RoleLiquidator, "CONSERVATIVE")
	return cfg
}

// Preset returns a named fleet composition.
func Preset(name string) (*Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "scout-pack":
		return Generate(RoleCounts{Leaders: 1, Scouts: 4, Followers: 2}), nil
	case "balanced-fleet":
		return Generate(RoleCounts{Leaders: 1, Followers: 2, Arbitrage: 1, MarketMakers: 1, Scouts: 2, Liquidators: 1}), nil
	case "market-making":
		return Generate(RoleCounts{MarketMakers: 3, Scouts: 1}), nil
	case "arb-hunters":
		return Generate(RoleCounts{Arbitrage: 3, Liquidators: 1}), nil
	default:
		return nil, fmt.Errorf("config: unknown preset %q", name)
	}
}

// PresetNames lists the presets Preset accepts.
func PresetNames() []string {
	return []string{"scout-pack", "balanced-fleet", "market-making", "arb-hunters"}
}
