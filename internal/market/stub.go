package market

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Stub is a self-contained simulated venue: a random walk per pair, jittered
// pool prices around the walk, and occasional undercollateralized accounts.
// A fixed seed makes runs reproducible.
type Stub struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
	drift  map[string]float64
	now    func() time.Time
}

// NewStub seeds a simulated venue for the given pairs. Starting prices are
// derived from the pair name so distinct pairs do not move in lockstep.
func NewStub(pairs []string, seed int64) *Stub {
	s := &Stub{
		rng:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]float64, len(pairs)),
		drift:  make(map[string]float64, len(pairs)),
		now:    time.Now,
	}
	for _, pair := range pairs {
		base := 50.0 + float64(len(pair)*17%200)
		s.prices[pair] = base
		s.drift[pair] = (s.rng.Float64() - 0.5) * 0.002
	}
	return s
}

func (s *Stub) step(pair string) float64 {
	px, ok := s.prices[pair]
	if !ok {
		px = 100.0
		s.prices[pair] = px
		s.drift[pair] = 0
	}
	// Drift plus noise, occasionally re-aimed so trends do not run forever.
	if s.rng.Float64() < 0.02 {
		s.drift[pair] = (s.rng.Float64() - 0.5) * 0.002
	}
	px *= 1 + s.drift[pair] + (s.rng.Float64()-0.5)*0.004
	if px < 0.0001 {
		px = 0.0001
	}
	s.prices[pair] = px
	return px
}

// Quote advances the walk one step and returns the new observation.
func (s *Stub) Quote(pair string) (Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	px := s.step(pair)
	return Quote{
		Pair:   pair,
		Price:  px,
		Volume: 1000 + s.rng.Float64()*9000,
		Ts:     s.now(),
	}, true
}

// PoolQuotes returns the current price as seen by a handful of simulated
// pools, each with its own small premium or discount.
func (s *Stub) PoolQuotes(pair string) []PoolQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	px, ok := s.prices[pair]
	if !ok {
		px = s.step(pair)
	}
	pools := []string{"orca", "raydium", "meteora"}
	out := make([]PoolQuote, 0, len(pools))
	for _, pool := range pools {
		skew := (s.rng.Float64() - 0.5) * 0.02
		out = append(out, PoolQuote{
			Pool:      pool,
			Pair:      pair,
			Price:     px * (1 + skew),
			Liquidity: 10_000 + s.rng.Float64()*90_000,
		})
	}
	return out
}

// RiskyPositions occasionally surfaces accounts trading near insolvency.
func (s *Stub) RiskyPositions() []LendingPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() > 0.15 {
		return nil
	}
	n := 1 + s.rng.Intn(3)
	out := make([]LendingPosition, 0, n)
	for i := 0; i < n; i++ {
		collateral := 1000 + s.rng.Float64()*20_000
		health := 0.85 + s.rng.Float64()*0.4
		out = append(out, LendingPosition{
			Account:      fmt.Sprintf("acct-%06x", s.rng.Intn(1<<24)),
			Token:        "SOL",
			Collateral:   collateral,
			Debt:         collateral / math.Max(health, 0.01),
			HealthFactor: health,
		})
	}
	return out
}

func (s *Stub) currentPrice(pair string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	px, ok := s.prices[pair]
	return px, ok
}

// Condition summarizes the average drift across tracked pairs.
func (s *Stub) Condition() Condition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.drift) == 0 {
		return Neutral
	}
	var total float64
	for _, d := range s.drift {
		total += d
	}
	mean := total / float64(len(s.drift))
	switch {
	case mean > 0.0003:
		return Bullish
	case mean < -0.0003:
		return Bearish
	default:
		return Neutral
	}
}
