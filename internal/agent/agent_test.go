package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nlc9-swarm/internal/execution"
	"nlc9-swarm/internal/market"
	"nlc9-swarm/internal/nlc9"
	"nlc9-swarm/internal/signal"
)

// fakeMarket returns canned data so cycles are fully deterministic.
type fakeMarket struct {
	quotes    map[string]market.Quote
	pools     map[string][]market.PoolQuote
	risky     []market.LendingPosition
	condition market.Condition
}

func (f *fakeMarket) Quote(pair string) (market.Quote, bool) {
	q, ok := f.quotes[pair]
	return q, ok
}

func (f *fakeMarket) PoolQuotes(pair string) []market.PoolQuote { return f.pools[pair] }

func (f *fakeMarket) RiskyPositions() []market.LendingPosition { return f.risky }

func (f *fakeMarket) Condition() market.Condition { return f.condition }

// fakeExecutor fills every order at the intent pair's quoted price.
type fakeExecutor struct {
	mu      sync.Mutex
	intents []execution.Intent
	lastCtx context.Context
	price   float64
	fail    bool
	err     error
}

func (f *fakeExecutor) Submit(ctx context.Context, in execution.Intent) (execution.Result, error) {
	f.mu.Lock()
	f.intents = append(f.intents, in)
	f.lastCtx = ctx
	f.mu.Unlock()
	if f.err != nil {
		return execution.Result{}, f.err
	}
	if f.fail {
		return execution.Result{Success: false}, nil
	}
	return execution.Result{Success: true, Price: f.price, TxRef: "test"}, nil
}

func (f *fakeExecutor) submitted() []execution.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execution.Intent(nil), f.intents...)
}

// capturePublisher records every outbound message.
type capturePublisher struct {
	mu   sync.Mutex
	msgs []signal.Message
}

func (p *capturePublisher) Publish(msg signal.Message) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
}

func (p *capturePublisher) byKind(kind signal.Kind) []signal.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []signal.Message
	for _, m := range p.msgs {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func newTestAgent(t *testing.T, cfg Config, mkt market.Source, exec execution.Executor) (*Agent, *capturePublisher) {
	t.Helper()
	pub := &capturePublisher{}
	if mkt == nil {
		mkt = &fakeMarket{quotes: map[string]market.Quote{}}
	}
	if exec == nil {
		exec = &fakeExecutor{price: 100}
	}
	a := New(cfg, Deps{
		Market: mkt,
		Exec:   exec,
		Out:    pub,
		Log:    zerolog.Nop(),
		Seed:   1,
	})
	a.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return a, pub
}

func TestBookAveragesCostAndRealizesProfit(t *testing.T) {
	b := newBook(10_000)
	b.applyBuy("SOL/USDC", 10, 100)
	b.applyBuy("SOL/USDC", 10, 110)

	pos := b.positions["SOL/USDC"]
	if pos.Qty != 20 {
		t.Fatalf("qty = %v, want 20", pos.Qty)
	}
	if pos.AvgCost != 105 {
		t.Fatalf("avg cost = %v, want 105", pos.AvgCost)
	}
	if b.cash != 10_000-2100 {
		t.Fatalf("cash = %v, want %v", b.cash, 10_000-2100)
	}

	b.applySell("SOL/USDC", 20, 120)
	if b.realized != 300 {
		t.Fatalf("realized = %v, want 300", b.realized)
	}
	if _, open := b.positions["SOL/USDC"]; open {
		t.Fatal("position should be closed after selling the full quantity")
	}
}

func TestBookSellClampsToHeldQuantity(t *testing.T) {
	b := newBook(1000)
	b.applyBuy("SOL/USDC", 5, 100)
	b.applySell("SOL/USDC", 50, 110)
	if b.realized != 50 {
		t.Fatalf("realized = %v, want 50 (5 units of 10 profit)", b.realized)
	}
}

func TestCycleExecutesQualifyingSignalAndReportsStatus(t *testing.T) {
	mkt := &fakeMarket{
		quotes:    map[string]market.Quote{"SOL/USDC": {Pair: "SOL/USDC", Price: 100, Volume: 5000}},
		condition: market.Bullish,
	}
	exec := &fakeExecutor{price: 100}
	a, pub := newTestAgent(t, Config{
		ID: "leader-1", Role: RoleLeader, Strategy: "AGGRESSIVE",
		Pairs: []string{"SOL/USDC"}, Capital: 10_000,
	}, mkt, exec)

	if err := a.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	intents := exec.submitted()
	if len(intents) != 1 {
		t.Fatalf("submitted %d intents, want 1", len(intents))
	}
	if intents[0].Side != execution.Buy {
		t.Fatalf("side = %v, want Buy in a bullish market", intents[0].Side)
	}

	status := pub.byKind(signal.KindStatus)
	if len(status) != 1 {
		t.Fatalf("published %d status messages, want 1", len(status))
	}
	if status[0].To != signal.CoordinatorID {
		t.Fatalf("status addressed to %q, want coordinator", status[0].To)
	}
	if status[0].Status.Trades != 1 || status[0].Status.Successes != 1 {
		t.Fatalf("status = %+v, want 1 trade / 1 success", status[0].Status)
	}
	if a.State() != StateWaiting {
		t.Fatalf("state after cycle = %v, want WAITING", a.State())
	}
}

func TestLeaderBroadcastsSignalWithFrame(t *testing.T) {
	mkt := &fakeMarket{
		quotes:    map[string]market.Quote{"SOL/USDC": {Pair: "SOL/USDC", Price: 100, Volume: 5000}},
		condition: market.Bullish,
	}
	a, pub := newTestAgent(t, Config{
		ID: "leader-1", Role: RoleLeader, Strategy: "AGGRESSIVE",
		Pairs: []string{"SOL/USDC"}, Capital: 10_000,
	}, mkt, nil)
	a.codec = nlc9.New(zerolog.Nop())

	if err := a.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	broadcasts := pub.byKind(signal.KindSignal)
	if len(broadcasts) != 1 {
		t.Fatalf("published %d signal broadcasts, want 1", len(broadcasts))
	}
	if broadcasts[0].To != signal.Broadcast {
		t.Fatalf("broadcast addressed to %q, want %q", broadcasts[0].To, signal.Broadcast)
	}
	if broadcasts[0].Frame == nil {
		t.Fatal("broadcast should carry an encoded frame when a codec is wired")
	}
	if !broadcasts[0].Frame.Verify() {
		t.Fatal("broadcast frame failed verification")
	}
}

func TestCycleSkipsSellWithoutPosition(t *testing.T) {
	mkt := &fakeMarket{
		quotes:    map[string]market.Quote{"SOL/USDC": {Pair: "SOL/USDC", Price: 100}},
		condition: market.Bearish,
	}
	exec := &fakeExecutor{price: 100}
	a, _ := newTestAgent(t, Config{
		ID: "leader-1", Role: RoleLeader, Strategy: "AGGRESSIVE",
		Pairs: []string{"SOL/USDC"}, Capital: 10_000,
	}, mkt, exec)

	if err := a.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if got := exec.submitted(); len(got) != 0 {
		t.Fatalf("submitted %d intents, want 0 (no position to sell)", len(got))
	}
}

func TestCycleRiskGateBlocksAfterTradeRateExhausted(t *testing.T) {
	mkt := &fakeMarket{
		quotes:    map[string]market.Quote{"SOL/USDC": {Pair: "SOL/USDC", Price: 100, Volume: 5000}},
		condition: market.Bullish,
	}
	exec := &fakeExecutor{price: 100}
	a, _ := newTestAgent(t, Config{
		ID: "leader-1", Role: RoleLeader, Strategy: "AGGRESSIVE",
		Pairs: []string{"SOL/USDC"}, Capital: 100_000, MaxPosition: 1_000_000,
	}, mkt, exec)

	// Exhaust the hourly budget with synthetic trade history.
	a.mu.Lock()
	for i := 0; i < a.profile.MaxTradesPerHour; i++ {
		a.tradeTimes = append(a.tradeTimes, a.now().Add(-time.Minute))
	}
	a.mu.Unlock()

	if err := a.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if got := exec.submitted(); len(got) != 0 {
		t.Fatalf("submitted %d intents, want 0 with the trade budget exhausted", len(got))
	}
}

func TestFailedTradeCountsTowardRateButNotSuccesses(t *testing.T) {
	mkt := &fakeMarket{
		quotes:    map[string]market.Quote{"SOL/USDC": {Pair: "SOL/USDC", Price: 100, Volume: 5000}},
		condition: market.Bullish,
	}
	exec := &fakeExecutor{price: 100, fail: true}
	a, _ := newTestAgent(t, Config{
		ID: "leader-1", Role: RoleLeader, Strategy: "AGGRESSIVE",
		Pairs: []string{"SOL/USDC"}, Capital: 10_000,
	}, mkt, exec)

	if err := a.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	perf := a.Performance()
	if perf.Trades != 1 {
		t.Fatalf("trades = %d, want 1", perf.Trades)
	}
	if perf.Successes != 0 {
		t.Fatalf("successes = %d, want 0", perf.Successes)
	}
	if perf.Position != 0 {
		t.Fatalf("position = %v, want 0 after a failed fill", perf.Position)
	}
}

func TestTradeInFlightSurvivesCancelledContext(t *testing.T) {
	mkt := &fakeMarket{
		quotes: map[string]market.Quote{"SOL/USDC": {Pair: "SOL/USDC", Price: 100, Volume: 5000}},
	}
	exec := &fakeExecutor{price: 100}
	a, _ := newTestAgent(t, Config{
		ID: "leader-1", Role: RoleLeader, Strategy: "AGGRESSIVE",
		Pairs: []string{"SOL/USDC"}, Capital: 10_000,
	}, mkt, exec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.executeTrade(ctx, signal.Signal{Direction: signal.Buy, Strength: 0.9, Confidence: 0.99, Token: "SOL/USDC", Price: 100})

	exec.mu.Lock()
	got := exec.lastCtx
	exec.mu.Unlock()
	if got == nil {
		t.Fatal("no intent submitted")
	}
	if got.Err() != nil {
		t.Fatalf("submission context cancelled: %v", got.Err())
	}
}

func TestCycleRecoversPanicAsFatal(t *testing.T) {
	a, _ := newTestAgent(t, Config{
		ID: "mystery-1", Role: Role("UNKNOWN"), Strategy: "BALANCED",
	}, nil, nil)

	err := a.Cycle(context.Background())
	if !errors.Is(err, ErrAgentFatal) {
		t.Fatalf("Cycle() error = %v, want ErrAgentFatal", err)
	}
}

func TestEnterEmergencyHaltsAndBroadcasts(t *testing.T) {
	a, pub := newTestAgent(t, Config{
		ID: "scout-1", Role: RoleScout, Strategy: "BALANCED",
	}, nil, nil)

	a.enterEmergency("kaput")

	if !a.Halted() {
		t.Fatal("agent should be halted")
	}
	if a.State() != StateEmergencyStop {
		t.Fatalf("state = %v, want EMERGENCY_STOP", a.State())
	}
	got := pub.byKind(signal.KindEmergency)
	if len(got) != 1 || got[0].Reason != "kaput" || got[0].To != signal.Broadcast {
		t.Fatalf("emergency broadcast = %+v, want one broadcast with the reason", got)
	}
}

func TestFollowerMirrorsHighConfidenceSignals(t *testing.T) {
	mkt := &fakeMarket{
		quotes: map[string]market.Quote{"SOL/USDC": {Pair: "SOL/USDC", Price: 100}},
	}
	exec := &fakeExecutor{price: 100}
	a, _ := newTestAgent(t, Config{
		ID: "follower-1", Role: RoleFollower, Strategy: "COPY_TRADE",
		Pairs: []string{"SOL/USDC"}, Capital: 10_000,
	}, mkt, exec)

	base := signal.Signal{
		Direction: signal.Buy, Strength: 0.9, Token: "SOL/USDC", Price: 100, Origin: "leader-1",
	}

	low := base
	low.Confidence = 0.6
	a.handle(context.Background(), signal.Message{
		From: "leader-1", To: a.ID, Kind: signal.KindSignal, Signal: &low,
	})
	if got := exec.submitted(); len(got) != 0 {
		t.Fatalf("mirrored a signal below the confidence floor")
	}

	high := base
	high.Confidence = 0.95
	a.handle(context.Background(), signal.Message{
		From: "leader-1", To: a.ID, Kind: signal.KindSignal, Signal: &high,
	})
	intents := exec.submitted()
	if len(intents) != 1 {
		t.Fatalf("submitted %d intents, want 1 mirrored trade", len(intents))
	}
	if intents[0].Pair != "SOL/USDC" || intents[0].Side != execution.Buy {
		t.Fatalf("mirrored intent = %+v", intents[0])
	}
}

func TestNonFollowerIgnoresCopySignals(t *testing.T) {
	exec := &fakeExecutor{price: 100}
	a, _ := newTestAgent(t, Config{
		ID: "scout-1", Role: RoleScout, Strategy: "BALANCED",
	}, nil, exec)

	s := signal.Signal{Direction: signal.Buy, Strength: 0.9, Confidence: 0.99, Token: "SOL/USDC", Price: 100}
	a.handle(context.Background(), signal.Message{From: "leader-1", Kind: signal.KindSignal, Signal: &s})
	if got := exec.submitted(); len(got) != 0 {
		t.Fatalf("non-follower mirrored a signal")
	}
}

func TestEmergencyMessageHaltsAgent(t *testing.T) {
	a, _ := newTestAgent(t, Config{ID: "scout-1", Role: RoleScout}, nil, nil)

	a.handle(context.Background(), signal.Message{
		From: "leader-1", To: signal.Broadcast, Kind: signal.KindEmergency, Reason: "fleet halt",
	})
	if !a.Halted() || a.State() != StateEmergencyStop {
		t.Fatalf("agent not halted: halted=%v state=%v", a.Halted(), a.State())
	}
}

func TestCoordinationUpdatesProfileParameters(t *testing.T) {
	a, _ := newTestAgent(t, Config{ID: "scout-1", Role: RoleScout, Strategy: "BALANCED"}, nil, nil)

	a.handle(context.Background(), signal.Message{
		From: signal.CoordinatorID, Kind: signal.KindCoordination,
		Coordination: &signal.Coordination{
			Action:    "retune",
			Consensus: 0.75,
			Payload: map[string]string{
				"position_size_pct":   "0.07",
				"max_trades_per_hour": "9",
				"entry_threshold":     "0.70",
				"unknown_key":         "ignored",
			},
		},
	})

	prof := a.Profile()
	if prof.PositionSizePct != 0.07 {
		t.Fatalf("PositionSizePct = %v, want 0.07", prof.PositionSizePct)
	}
	if prof.MaxTradesPerHour != 9 {
		t.Fatalf("MaxTradesPerHour = %d, want 9", prof.MaxTradesPerHour)
	}
	if prof.EntryThreshold != 0.70 {
		t.Fatalf("EntryThreshold = %v, want 0.70", prof.EntryThreshold)
	}
}

func TestThrottleRiskFloorsTradeBudget(t *testing.T) {
	a, _ := newTestAgent(t, Config{ID: "scout-1", Role: RoleScout, Strategy: "CONSERVATIVE"}, nil, nil)

	before := a.Profile()
	for i := 0; i < 20; i++ {
		a.ThrottleRisk(0.80, 1)
	}
	after := a.Profile()

	if after.MaxTradesPerHour != 1 {
		t.Fatalf("MaxTradesPerHour = %d, want floor of 1", after.MaxTradesPerHour)
	}
	if after.PositionSizePct <= 0 || after.PositionSizePct >= before.PositionSizePct {
		t.Fatalf("PositionSizePct = %v, want damped but positive (was %v)", after.PositionSizePct, before.PositionSizePct)
	}
}

func TestArbitrageAnalyzerFindsSpread(t *testing.T) {
	mkt := &fakeMarket{
		pools: map[string][]market.PoolQuote{
			"SOL/USDC": {
				{Pool: "orca", Pair: "SOL/USDC", Price: 100, Liquidity: 50_000},
				{Pool: "raydium", Pair: "SOL/USDC", Price: 102, Liquidity: 40_000},
			},
		},
	}
	a, _ := newTestAgent(t, Config{
		ID: "arb-1", Role: RoleArbitrage, Strategy: "AGGRESSIVE", Pairs: []string{"SOL/USDC"},
	}, mkt, nil)

	signals := a.analyze()
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	s := signals[0]
	if s.Meta["buy_pool"] != "orca" || s.Meta["sell_pool"] != "raydium" {
		t.Fatalf("pool routing = %v", s.Meta)
	}
	if s.Strength <= 0 || s.Strength > 1 {
		t.Fatalf("strength out of range: %v", s.Strength)
	}
}

func TestLiquidatorConfidenceStaysBounded(t *testing.T) {
	mkt := &fakeMarket{
		risky: []market.LendingPosition{
			{Account: "acc1", Token: "SOL", Collateral: 1000, Debt: 990, HealthFactor: 0.40},
			{Account: "acc2", Token: "SOL", Collateral: 1000, Debt: 900, HealthFactor: 1.10},
		},
	}
	a, _ := newTestAgent(t, Config{ID: "liq-1", Role: RoleLiquidator, Strategy: "AGGRESSIVE"}, mkt, nil)

	signals := a.analyze()
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1 (healthy account skipped)", len(signals))
	}
	if c := signals[0].Confidence; c > 1 {
		t.Fatalf("confidence = %v, want clamped to 1", c)
	}
	if signals[0].Meta["account"] != "acc1" {
		t.Fatalf("meta = %v", signals[0].Meta)
	}
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	a, _ := newTestAgent(t, Config{ID: "scout-1", Role: RoleScout, QueueSize: 1}, nil, nil)

	if !a.Enqueue(signal.Message{Kind: signal.KindCommand}) {
		t.Fatal("first enqueue should succeed")
	}
	if a.Enqueue(signal.Message{Kind: signal.KindCommand}) {
		t.Fatal("second enqueue should be rejected on a full queue")
	}
}

func TestRunTradingStopsOnContextCancel(t *testing.T) {
	a, _ := newTestAgent(t, Config{ID: "scout-1", Role: RoleScout, Strategy: "AGGRESSIVE"}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunTrading(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunTrading did not exit after cancel")
	}
}
