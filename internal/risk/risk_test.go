package risk

import (
	"errors"
	"testing"
	"time"
)

func passing() Check {
	return Check{
		Position:         0.5,
		MaxPosition:      2,
		Unrealized:       -10,
		Capital:          1000,
		MaxDrawdown:      0.2,
		TradesLastHour:   3,
		MaxTradesPerHour: 12,
		SinceLastTrade:   10 * time.Minute,
		Cooldown:         time.Minute,
	}
}

func TestAllowPasses(t *testing.T) {
	if err := Allow(passing()); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}

func TestPositionCapIsAbsolute(t *testing.T) {
	c := passing()
	c.Position = c.MaxPosition
	// No other condition can override a reached position cap.
	c.Unrealized = 1_000_000
	c.TradesLastHour = 0
	c.SinceLastTrade = time.Hour
	if err := Allow(c); !errors.Is(err, ErrPositionLimit) {
		t.Fatalf("expected position limit rejection, got %v", err)
	}
}

func TestCooldownIsAbsolute(t *testing.T) {
	c := passing()
	c.SinceLastTrade = 30 * time.Second
	if err := Allow(c); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}
}

func TestDrawdownRejection(t *testing.T) {
	c := passing()
	c.Unrealized = -300
	if err := Allow(c); !errors.Is(err, ErrDrawdown) {
		t.Fatalf("expected drawdown rejection, got %v", err)
	}
}

func TestDrawdownFlooredAtZero(t *testing.T) {
	c := passing()
	c.Unrealized = 500
	if got := c.Drawdown(); got != 0 {
		t.Fatalf("gains must not produce drawdown, got %v", got)
	}
}

func TestTradeRateRejection(t *testing.T) {
	c := passing()
	c.TradesLastHour = c.MaxTradesPerHour
	if err := Allow(c); !errors.Is(err, ErrTradeRate) {
		t.Fatalf("expected trade rate rejection, got %v", err)
	}
}
