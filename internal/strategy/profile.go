// Package strategy defines the named parameter bundles that tune agent
// trading behavior.
package strategy

import (
	"strings"
	"time"
)

// Profile is one bundle of trading knobs. The rebalancer mutates
// PositionSizePct and MaxTradesPerHour at runtime; everything else is
// fixed at construction.
type Profile struct {
	Name              string
	PositionSizePct   float64 // fraction of capital committed per trade
	EntryThreshold    float64 // minimum signal strength to act
	MaxDrawdown       float64 // unrealized-loss fraction that halts entries
	MaxTradesPerHour  int
	Cooldown          time.Duration
	CycleInterval     time.Duration
	SpreadPct         float64 // market-maker ladder spacing
	OrderDepth        int     // market-maker ladder depth per side
	CopyMinConfidence float64 // follower floor for copied signals
}

// Aggressive trades often with large size and loose guards.
func Aggressive() Profile {
	return Profile{
		Name:              "AGGRESSIVE",
		PositionSizePct:   0.25,
		EntryThreshold:    0.55,
		MaxDrawdown:       0.30,
		MaxTradesPerHour:  30,
		Cooldown:          30 * time.Second,
		CycleInterval:     2 * time.Second,
		SpreadPct:         0.4,
		OrderDepth:        5,
		CopyMinConfidence: 0.7,
	}
}

// Conservative trades rarely with small size and tight guards.
func Conservative() Profile {
	return Profile{
		Name:              "CONSERVATIVE",
		PositionSizePct:   0.05,
		EntryThreshold:    0.75,
		MaxDrawdown:       0.10,
		MaxTradesPerHour:  6,
		Cooldown:          5 * time.Minute,
		CycleInterval:     10 * time.Second,
		SpreadPct:         1.2,
		OrderDepth:        2,
		CopyMinConfidence: 0.7,
	}
}

// Balanced is the default middle ground.
func Balanced() Profile {
	return Profile{
		Name:              "BALANCED",
		PositionSizePct:   0.10,
		EntryThreshold:    0.65,
		MaxDrawdown:       0.20,
		MaxTradesPerHour:  12,
		Cooldown:          2 * time.Minute,
		CycleInterval:     5 * time.Second,
		SpreadPct:         0.8,
		OrderDepth:        3,
		CopyMinConfidence: 0.7,
	}
}

// Adaptive starts near balanced and relies on the rebalancer to steer it.
func Adaptive() Profile {
	return Profile{
		Name:              "ADAPTIVE",
		PositionSizePct:   0.12,
		EntryThreshold:    0.60,
		MaxDrawdown:       0.18,
		MaxTradesPerHour:  15,
		Cooldown:          time.Minute,
		CycleInterval:     3 * time.Second,
		SpreadPct:         0.6,
		OrderDepth:        3,
		CopyMinConfidence: 0.7,
	}
}

// CopyTrade sizes conservatively and only mirrors received signals.
func CopyTrade() Profile {
	return Profile{
		Name:              "COPY_TRADE",
		PositionSizePct:   0.08,
		EntryThreshold:    0.50,
		MaxDrawdown:       0.15,
		MaxTradesPerHour:  10,
		Cooldown:          90 * time.Second,
		CycleInterval:     5 * time.Second,
		SpreadPct:         0.8,
		OrderDepth:        2,
		CopyMinConfidence: 0.7,
	}
}

// Build returns the profile matching the configured name, defaulting to
// balanced for anything unrecognized.
func Build(name string) Profile {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "AGGRESSIVE":
		return Aggressive()
	case "CONSERVATIVE":
		return Conservative()
	case "", "BALANCED":
		return Balanced()
	case "ADAPTIVE":
		return Adaptive()
	case "COPY_TRADE", "COPYTRADE":
		return CopyTrade()
	default:
		return Balanced()
	}
}
