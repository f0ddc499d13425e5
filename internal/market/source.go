// Package market abstracts the venues agents analyze. Role analyzers only
// see the Source interface, so the simulated venue can be swapped for real
// market data without touching routing, consensus, or rebalancing.
package market

import "time"

// Condition is the aggregate market read leaders act on.
type Condition string

const (
	Bullish Condition = "BULLISH"
	Bearish Condition = "BEARISH"
	Neutral Condition = "NEUTRAL"
)

// Quote is the latest price/volume observation for one trading pair.
type Quote struct {
	Pair   string
	Price  float64
	Volume float64
	Ts     time.Time
}

// PoolQuote is one venue's price for a pair, used for cross-pool arbitrage
// scans.
type PoolQuote struct {
	Pool      string
	Pair      string
	Price     float64
	Liquidity float64
}

// LendingPosition is a margin account that may be eligible for liquidation
// when its health factor drops below 1.
type LendingPosition struct {
	Account      string
	Token        string
	Collateral   float64
	Debt         float64
	HealthFactor float64
}

// Source supplies every market observation the role analyzers need.
type Source interface {
	Quote(pair string) (Quote, bool)
	PoolQuotes(pair string) []PoolQuote
	RiskyPositions() []LendingPosition
	Condition() Condition
}
