package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"nlc9-swarm/internal/execution"
	"nlc9-swarm/internal/nlc9"
	"nlc9-swarm/internal/risk"
	"nlc9-swarm/internal/signal"
)

// ErrAgentFatal marks an unhandled failure inside a trading cycle. The
// agent broadcasts an emergency and its trading loop exits permanently.
var ErrAgentFatal = errors.New("agent: fatal cycle failure")

// minConfidence is the floor every signal must clear before the strategy
// entry threshold is even consulted.
const minConfidence = 0.5

// RunTrading drives analyze→decide→execute→report until the context is
// canceled or a fatal failure stops the agent. The steps of one cycle are
// strictly sequential and never interleave with another cycle.
func (a *Agent) RunTrading(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.setState(StateIdle)
			return
		case <-time.After(a.Profile().CycleInterval):
		}
		if a.Halted() {
			a.setState(StateEmergencyStop)
			return
		}

		if err := a.Cycle(ctx); err != nil {
			a.enterEmergency(err.Error())
			return
		}
	}
}

// Cycle runs exactly one analyze→decide→execute→report pass. Trade-level
// failures are absorbed into counters; anything else (including panics)
// comes back as ErrAgentFatal.
func (a *Agent) Cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAgentFatal, r)
		}
	}()

	a.setState(StateAnalyzing)
	signals := a.analyze()

	queued := a.decide(signals)

	a.setState(StateTrading)
	for _, s := range queued {
		a.executeTrade(ctx, s)
	}

	a.report()
	a.setState(StateWaiting)
	return nil
}

func (a *Agent) analyze() []signal.Signal {
	an, ok := analyzers[a.Role]
	if !ok {
		panic(fmt.Sprintf("no analyzer for role %s", a.Role))
	}
	return an.analyze(a)
}

// decide filters analysis output down to executable trades: confidence and
// strength floors first, then the risk gate. Leaders broadcast qualifying
// signals to the fleet before queuing them.
func (a *Agent) decide(signals []signal.Signal) []signal.Signal {
	prof := a.Profile()
	var queued []signal.Signal
	for _, s := range signals {
		if s.Confidence < minConfidence || s.Strength < prof.EntryThreshold {
			continue
		}
		if s.Direction == signal.Hold || s.Direction == signal.Alert {
			continue
		}
		if s.Direction == signal.Sell && !a.holdsPosition(s.Token) {
			continue
		}
		if err := a.gate(s); err != nil {
			a.log.Debug().Err(err).Str("token", s.Token).Msg("risk gate rejected signal")
			continue
		}
		if a.Role == RoleLeader {
			a.broadcastSignal(s)
		}
		queued = append(queued, s)
	}
	return queued
}

func (a *Agent) holdsPosition(pair string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book.position(pair) > 0
}

// gate applies the four-check risk gate against live counters.
func (a *Agent) gate(s signal.Signal) error {
	marks := a.currentMarks()

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	since := now.Sub(a.lastTrade)
	if a.lastTrade.IsZero() {
		since = time.Duration(math.MaxInt64)
	}
	return risk.Allow(risk.Check{
		Position:         a.book.positionSize(),
		MaxPosition:      a.maxPosition,
		Unrealized:       a.book.unrealized(marks),
		Capital:          a.book.capital,
		MaxDrawdown:      a.profile.MaxDrawdown,
		TradesLastHour:   a.tradesInTrailingHour(now),
		MaxTradesPerHour: a.profile.MaxTradesPerHour,
		SinceLastTrade:   since,
		Cooldown:         a.profile.Cooldown,
	})
}

func (a *Agent) currentMarks() map[string]float64 {
	a.mu.Lock()
	pairs := make([]string, 0, len(a.book.positions))
	for pair := range a.book.positions {
		pairs = append(pairs, pair)
	}
	a.mu.Unlock()

	marks := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		if q, ok := a.market.Quote(pair); ok {
			marks[pair] = q.Price
		}
	}
	return marks
}

// executeTrade submits one queued signal. Counters and the last-trade
// timestamp advance regardless of outcome; the book moves only on success.
func (a *Agent) executeTrade(ctx context.Context, s signal.Signal) {
	prof := a.Profile()
	amount := a.sizeFor(s)
	if amount <= 0 {
		return
	}

	side := execution.Buy
	if s.Direction == signal.Sell {
		side = execution.Sell
	}

	// A submission already in flight runs to completion even if the run
	// context is cancelled mid-step; the cycle stops at the next select.
	res, err := a.exec.Submit(context.WithoutCancel(ctx), execution.Intent{
		Agent:       a.ID,
		Pair:        s.Token,
		Side:        side,
		Amount:      amount,
		SlippageBps: int(prof.SpreadPct * 100),
	})

	a.mu.Lock()
	a.trades++
	now := a.now()
	a.tradeTimes = append(a.tradeTimes, now)
	a.lastTrade = now
	if err == nil && res.Success {
		a.successes++
		if side == execution.Buy {
			a.book.applyBuy(s.Token, amount, res.Price)
		} else {
			a.book.applySell(s.Token, amount, res.Price)
		}
	}
	a.mu.Unlock()

	if err != nil {
		// Venue failures are per-trade noise, never fatal.
		a.log.Warn().Err(err).Str("token", s.Token).Msg("trade failed")
	}
}

// sizeFor converts a signal into a trade quantity from the profile's
// position sizing, capped by the remaining position budget.
func (a *Agent) sizeFor(s signal.Signal) float64 {
	price := s.Price
	if price <= 0 {
		if q, ok := a.market.Quote(s.Token); ok {
			price = q.Price
		}
	}
	if price <= 0 {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	qty := a.book.cash * a.profile.PositionSizePct / price
	if s.Direction == signal.Sell {
		qty = a.book.position(s.Token)
	}
	if room := a.maxPosition - a.book.positionSize(); s.Direction == signal.Buy && qty > room {
		qty = room
	}
	if qty < 0 {
		qty = 0
	}
	return qty
}

// report publishes the cycle-end status snapshot to the coordinator.
func (a *Agent) report() {
	status := a.Performance()
	a.out.Publish(signal.Message{
		From:   a.ID,
		To:     signal.CoordinatorID,
		Kind:   signal.KindStatus,
		Status: &status,
		Ts:     a.now(),
	})
}

// broadcastSignal shares a qualifying signal with the fleet, attaching its
// NLC-9 wire form when a codec is present.
func (a *Agent) broadcastSignal(s signal.Signal) {
	msg := signal.Message{
		From:   a.ID,
		To:     signal.Broadcast,
		Kind:   signal.KindSignal,
		Signal: &s,
		Ts:     a.now(),
	}
	if a.codec != nil {
		if f, err := a.codec.Encode(nlc9.EncodeRequest{
			Verb:   "SIGNAL",
			Object: "TRADE",
			Params: map[string]any{
				"strength":   s.Strength,
				"confidence": s.Confidence,
				"price":      s.Price,
			},
			Domain: "swarm",
		}); err == nil {
			msg.Frame = &f
		}
	}
	a.out.Publish(msg)
}

// Halt stops the agent's trading permanently without notifying peers, as
// when a fleet-wide emergency has already been broadcast.
func (a *Agent) Halt() {
	a.mu.Lock()
	a.halted = true
	a.mu.Unlock()
	a.setState(StateEmergencyStop)
}

// enterEmergency flips the agent into EMERGENCY_STOP and tells the fleet.
func (a *Agent) enterEmergency(reason string) {
	a.Halt()
	a.log.Error().Str("reason", reason).Msg("agent entering emergency stop")
	a.out.Publish(signal.Message{
		From:   a.ID,
		To:     signal.Broadcast,
		Kind:   signal.KindEmergency,
		Reason: reason,
		Ts:     a.now(),
	})
}
