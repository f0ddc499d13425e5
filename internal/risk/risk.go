// Package risk implements the pre-trade gate every position request must
// clear.
package risk

import (
	"errors"
	"time"
)

// Rejection reasons, matchable with errors.Is.
var (
	ErrPositionLimit = errors.New("risk: position limit reached")
	ErrDrawdown      = errors.New("risk: drawdown limit exceeded")
	ErrTradeRate     = errors.New("risk: hourly trade limit reached")
	ErrCooldown      = errors.New("risk: cooldown in effect")
)

// Check is the live trading state a gate decision is made against.
type Check struct {
	Position         float64       // current open position size
	MaxPosition      float64       // configured cap
	Unrealized       float64       // mark-to-market PnL, negative when losing
	Capital          float64       // bankroll used for drawdown math
	MaxDrawdown      float64       // fraction of capital
	TradesLastHour   int           // executed in the trailing 60 minutes
	MaxTradesPerHour int
	SinceLastTrade   time.Duration // time since the previous trade
	Cooldown         time.Duration
}

// Drawdown returns unrealized loss as a fraction of capital, floored at 0
// so gains never read as negative drawdown.
func (c Check) Drawdown() float64 {
	if c.Capital <= 0 || c.Unrealized >= 0 {
		return 0
	}
	return -c.Unrealized / c.Capital
}

// Allow applies all four checks; every one must pass. The returned error
// identifies the first failing check.
func Allow(c Check) error {
	if c.MaxPosition > 0 && c.Position >= c.MaxPosition {
		return ErrPositionLimit
	}
	if c.MaxDrawdown > 0 && c.Drawdown() > c.MaxDrawdown {
		return ErrDrawdown
	}
	if c.MaxTradesPerHour > 0 && c.TradesLastHour >= c.MaxTradesPerHour {
		return ErrTradeRate
	}
	if c.SinceLastTrade < c.Cooldown {
		return ErrCooldown
	}
	return nil
}
