package agent

import (
	"context"
	"strconv"

	"nlc9-swarm/internal/signal"
)

// copyConfidenceFloor is the absolute minimum for mirrored signals; the
// profile can only raise it.
const copyConfidenceFloor = 0.7

// RunDrain consumes the agent's inbox until the context is canceled. It
// runs concurrently with the trading loop, so every handler takes the
// agent mutex through the usual accessors.
func (a *Agent) RunDrain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.queue:
			a.handle(ctx, msg)
		}
	}
}

func (a *Agent) handle(ctx context.Context, msg signal.Message) {
	switch msg.Kind {
	case signal.KindSignal:
		a.handleSignal(ctx, msg)
	case signal.KindCommand:
		a.log.Info().Str("from", msg.From).Str("command", msg.Command).Msg("command received")
	case signal.KindCoordination:
		a.handleCoordination(msg)
	case signal.KindEmergency:
		a.log.Warn().Str("from", msg.From).Str("reason", msg.Reason).Msg("fleet emergency received")
		a.Halt()
	default:
		a.log.Debug().Str("kind", string(msg.Kind)).Msg("ignoring message")
	}
}

// handleSignal mirrors a peer's signal when this agent is a copy-trading
// follower and the signal clears the confidence floor and the risk gate.
func (a *Agent) handleSignal(ctx context.Context, msg signal.Message) {
	if msg.Signal == nil {
		return
	}
	if a.Role != RoleFollower {
		return
	}
	prof := a.Profile()
	if prof.Name != "COPY_TRADE" {
		return
	}
	floor := copyConfidenceFloor
	if prof.CopyMinConfidence > floor {
		floor = prof.CopyMinConfidence
	}
	s := *msg.Signal
	if s.Confidence < floor {
		return
	}
	if s.Direction != signal.Buy && s.Direction != signal.Sell {
		return
	}
	if s.Direction == signal.Sell && !a.holdsPosition(s.Token) {
		return
	}
	if err := a.gate(s); err != nil {
		a.log.Debug().Err(err).Str("token", s.Token).Msg("risk gate rejected copy trade")
		return
	}
	a.log.Info().Str("from", msg.From).Str("token", s.Token).
		Str("direction", string(s.Direction)).Msg("mirroring signal")
	a.executeTrade(ctx, s)
}

// handleCoordination applies a consensus outcome's parameter updates.
// Unknown keys are skipped so mixed-version fleets degrade gracefully.
func (a *Agent) handleCoordination(msg signal.Message) {
	if msg.Coordination == nil {
		return
	}
	co := msg.Coordination
	a.log.Info().Str("action", co.Action).Float64("consensus", co.Consensus).Msg("applying coordination")

	a.mu.Lock()
	defer a.mu.Unlock()
	for key, raw := range co.Payload {
		switch key {
		case "position_size_pct":
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 && v <= 1 {
				a.profile.PositionSizePct = v
			}
		case "max_trades_per_hour":
			if v, err := strconv.Atoi(raw); err == nil && v >= 1 {
				a.profile.MaxTradesPerHour = v
			}
		case "entry_threshold":
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 && v <= 1 {
				a.profile.EntryThreshold = v
			}
		}
	}
}
