package agent

import (
	"fmt"

	"nlc9-swarm/internal/market"
	"nlc9-swarm/internal/signal"
)

// analyzer is one role's analysis behavior. The closed variant set keeps
// role dispatch a table lookup rather than a type switch scattered through
// the cycle.
type analyzer interface {
	analyze(a *Agent) []signal.Signal
}

var analyzers = map[Role]analyzer{
	RoleScout:       scoutAnalyzer{},
	RoleArbitrage:   arbitrageAnalyzer{},
	RoleMarketMaker: marketMakerAnalyzer{},
	RoleLeader:      leaderAnalyzer{},
	RoleFollower:    followerAnalyzer{},
	RoleLiquidator:  liquidatorAnalyzer{},
}

// scoutAnalyzer probabilistically surfaces entry candidates per pair.
type scoutAnalyzer struct{}

func (scoutAnalyzer) analyze(a *Agent) []signal.Signal {
	var out []signal.Signal
	for _, pair := range a.pairs {
		if a.rng.Float64() > 0.3 {
			continue
		}
		quote, ok := a.market.Quote(pair)
		if !ok {
			continue
		}
		direction := signal.Buy
		if a.rng.Float64() < 0.5 {
			direction = signal.Sell
		}
		out = append(out, signal.Signal{
			Direction:  direction,
			Strength:   0.5 + a.rng.Float64()*0.5,
			Confidence: 0.5 + a.rng.Float64()*0.45,
			Token:      pair,
			Price:      quote.Price,
			Volume:     quote.Volume,
			Origin:     a.ID,
			Ts:         a.now(),
		})
	}
	return out
}

// arbitrageAnalyzer looks for cross-pool spreads above a profit floor.
type arbitrageAnalyzer struct{}

const arbProfitFloor = 0.005

func (arbitrageAnalyzer) analyze(a *Agent) []signal.Signal {
	var out []signal.Signal
	for _, pair := range a.pairs {
		pools := a.market.PoolQuotes(pair)
		if len(pools) < 2 {
			continue
		}
		low, high := pools[0], pools[0]
		for _, p := range pools[1:] {
			if p.Price < low.Price {
				low = p
			}
			if p.Price > high.Price {
				high = p
			}
		}
		if low.Price <= 0 {
			continue
		}
		spread := (high.Price - low.Price) / low.Price
		if spread < arbProfitFloor {
			continue
		}
		strength := spread * 20
		if strength > 1 {
			strength = 1
		}
		out = append(out, signal.Signal{
			Direction:  signal.Buy,
			Strength:   strength,
			Confidence: 0.6 + 0.3*strength,
			Token:      pair,
			Price:      low.Price,
			Volume:     low.Liquidity,
			Origin:     a.ID,
			Ts:         a.now(),
			Meta: map[string]string{
				"buy_pool":  low.Pool,
				"sell_pool": high.Pool,
				"spread":    fmt.Sprintf("%.4f", spread),
			},
		})
	}
	return out
}

// marketMakerAnalyzer lays a symmetric ladder of quotes around the
// reference price.
type marketMakerAnalyzer struct{}

func (marketMakerAnalyzer) analyze(a *Agent) []signal.Signal {
	prof := a.Profile()
	var out []signal.Signal
	for _, pair := range a.pairs {
		quote, ok := a.market.Quote(pair)
		if !ok {
			continue
		}
		for level := 1; level <= prof.OrderDepth; level++ {
			offset := quote.Price * prof.SpreadPct / 100 * float64(level)
			for _, rung := range []struct {
				dir   signal.Direction
				price float64
			}{
				{signal.Buy, quote.Price - offset},
				{signal.Sell, quote.Price + offset},
			} {
				out = append(out, signal.Signal{
					Direction:  rung.dir,
					Strength:   prof.EntryThreshold,
					Confidence: 0.6,
					Token:      pair,
					Price:      rung.price,
					Volume:     quote.Volume,
					Origin:     a.ID,
					Ts:         a.now(),
					Meta:       map[string]string{"level": fmt.Sprintf("%d", level)},
				})
			}
		}
	}
	return out
}

// leaderAnalyzer reads the aggregate market condition and emits one
// directional signal sized to capital or current position.
type leaderAnalyzer struct{}

func (leaderAnalyzer) analyze(a *Agent) []signal.Signal {
	if len(a.pairs) == 0 {
		return nil
	}
	pair := a.pairs[0]
	quote, ok := a.market.Quote(pair)
	if !ok {
		return nil
	}

	var direction signal.Direction
	switch a.market.Condition() {
	case market.Bullish:
		direction = signal.Buy
	case market.Bearish:
		direction = signal.Sell
	default:
		direction = signal.Hold
	}
	if direction == signal.Hold {
		return nil
	}

	a.mu.Lock()
	volume := a.book.cash * a.profile.PositionSizePct
	if direction == signal.Sell {
		volume = a.book.position(pair) * quote.Price
	}
	a.mu.Unlock()
	if volume <= 0 {
		return nil
	}

	return []signal.Signal{{
		Direction:  direction,
		Strength:   0.8,
		Confidence: 0.85,
		Token:      pair,
		Price:      quote.Price,
		Volume:     volume,
		Origin:     a.ID,
		Ts:         a.now(),
	}}
}

// followerAnalyzer produces nothing; followers act only on received
// copy-trade signals.
type followerAnalyzer struct{}

func (followerAnalyzer) analyze(*Agent) []signal.Signal { return nil }

// liquidatorAnalyzer hunts for undercollateralized accounts.
type liquidatorAnalyzer struct{}

func (liquidatorAnalyzer) analyze(a *Agent) []signal.Signal {
	var out []signal.Signal
	for _, pos := range a.market.RiskyPositions() {
		if pos.HealthFactor >= 1 {
			continue
		}
		urgency := 1 - pos.HealthFactor
		strength := 0.6 + urgency*2
		if strength > 1 {
			strength = 1
		}
		confidence := 0.75 + urgency
		if confidence > 1 {
			confidence = 1
		}
		out = append(out, signal.Signal{
			Direction:  signal.Buy,
			Strength:   strength,
			Confidence: confidence,
			Token:      pos.Token,
			Price:      0,
			Volume:     pos.Collateral,
			Origin:     a.ID,
			Ts:         a.now(),
			Meta:       map[string]string{"account": pos.Account},
		})
	}
	return out
}
