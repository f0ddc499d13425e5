package execution

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nlc9-swarm/internal/market"
	"nlc9-swarm/internal/metrics"
)

// PaperExecutor fills orders against the market source at the current
// reference price plus slippage. A configurable failure rate exercises the
// fleet's error handling without a real venue.
type PaperExecutor struct {
	Source      market.Source
	Recorder    Recorder
	FailureRate float64
	SlippageBps float64

	log zerolog.Logger
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPaperExecutor builds a simulated venue executor.
func NewPaperExecutor(source market.Source, recorder Recorder, log zerolog.Logger, seed int64) *PaperExecutor {
	return &PaperExecutor{
		Source:      source,
		Recorder:    recorder,
		FailureRate: 0.05,
		SlippageBps: 15,
		log:         log.With().Str("component", "paper-exec").Logger(),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Submit fills the intent at the current quote, applying slippage against
// the taker. Simulated failures return a failed result, not an error.
func (p *PaperExecutor) Submit(ctx context.Context, intent Intent) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Err: err.Error()}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	if intent.Amount <= 0 {
		return Result{Err: "amount must be positive"}, fmt.Errorf("%w: amount must be positive", ErrExecution)
	}

	quote, ok := p.Source.Quote(intent.Pair)
	if !ok {
		return Result{Err: "no quote for pair"}, fmt.Errorf("%w: no quote for %s", ErrExecution, intent.Pair)
	}

	p.mu.Lock()
	failed := p.rng.Float64() < p.FailureRate
	slip := p.rng.Float64() * p.SlippageBps / 10_000
	p.mu.Unlock()

	if failed {
		p.log.Warn().Str("agent", intent.Agent).Str("pair", intent.Pair).Msg("simulated venue rejection")
		metrics.TradesTotal.WithLabelValues(intent.Agent, "failed").Inc()
		return Result{Err: "venue rejected order"}, nil
	}

	price := quote.Price
	if intent.Side == Buy {
		price *= 1 + slip
	} else {
		price *= 1 - slip
	}

	ref := uuid.NewString()
	if !intent.Simulate && p.Recorder != nil {
		p.Recorder.Record(Fill{
			Ref:    ref,
			Agent:  intent.Agent,
			Pair:   intent.Pair,
			Side:   intent.Side,
			Amount: intent.Amount,
			Price:  price,
			Ts:     quote.Ts,
		})
	}

	metrics.TradesTotal.WithLabelValues(intent.Agent, "filled").Inc()
	p.log.Debug().
		Str("agent", intent.Agent).
		Str("pair", intent.Pair).
		Str("side", string(intent.Side)).
		Float64("amount", intent.Amount).
		Float64("price", price).
		Str("ref", ref).
		Msg("paper fill")

	return Result{Success: true, Price: price, TxRef: ref}, nil
}
