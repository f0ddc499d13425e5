package swarm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nlc9-swarm/internal/agent"
	"nlc9-swarm/internal/execution"
	"nlc9-swarm/internal/market"
	"nlc9-swarm/internal/nlc9"
	"nlc9-swarm/internal/signal"
)

// Mode selects how much steering the coordinator applies.
type Mode string

const (
	// Centralized: the coordinator rebalances and broadcasts consensus.
	ModeCentralized Mode = "CENTRALIZED"
	// Decentralized: agents self-organize through consensus only; the
	// coordinator never rebalances.
	ModeDecentralized Mode = "DECENTRALIZED"
	// Hybrid: consensus-driven with a slower rebalancing cadence.
	ModeHybrid Mode = "HYBRID"
)

// hybridRebalanceEvery stretches the rebalance cadence in hybrid mode.
const hybridRebalanceEvery = 3

// Options tune the coordinator.
type Options struct {
	Mode               Mode
	ConsensusThreshold float64
	BallotTTL          time.Duration
	TickInterval       time.Duration
	EmergencyStop      bool // one agent's emergency halts the whole fleet
	ProfitSharing      bool
}

func (o *Options) fill() {
	if o.Mode == "" {
		o.Mode = ModeCentralized
	}
	if o.ConsensusThreshold <= 0 {
		o.ConsensusThreshold = 0.6
	}
	// Zero means unset; negative means explicitly unbounded.
	if o.BallotTTL == 0 {
		o.BallotTTL = 5 * time.Minute
	} else if o.BallotTTL < 0 {
		o.BallotTTL = 0
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 10 * time.Second
	}
}

// Deps are the shared collaborators handed to every agent.
type Deps struct {
	Market market.Source
	Exec   execution.Executor
	Codec  *nlc9.Codec
	Log    zerolog.Logger
}

// Coordinator owns the fleet: it starts two goroutines per agent plus its
// own coordination loop, and tears everything down on Stop.
type Coordinator struct {
	opts      Options
	router    *Router
	engine    *Engine
	rebalance *Rebalancer
	agents    []*agent.Agent
	statuses  map[string]signal.Status
	log       zerolog.Logger
	now       func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// New builds the coordinator and its fleet from agent configs.
func New(opts Options, agentCfgs []agent.Config, deps Deps) *Coordinator {
	opts.fill()
	engine := NewEngine(opts.ConsensusThreshold, opts.BallotTTL, 0, deps.Log)
	router := NewRouter(engine, 0, deps.Log)

	if deps.Codec != nil {
		registerSwarmSchemas(deps.Codec)
	}

	c := &Coordinator{
		opts:      opts,
		router:    router,
		engine:    engine,
		rebalance: NewRebalancer(opts.ProfitSharing, deps.Log),
		statuses:  make(map[string]signal.Status),
		log:       deps.Log.With().Str("component", "coordinator").Logger(),
		now:       time.Now,
	}
	for i, cfg := range agentCfgs {
		a := agent.New(cfg, agent.Deps{
			Market: deps.Market,
			Exec:   deps.Exec,
			Out:    router,
			Codec:  deps.Codec,
			Log:    deps.Log,
			Seed:   time.Now().UnixNano() + int64(i),
		})
		c.agents = append(c.agents, a)
		router.Register(a)
	}
	return c
}

// registerSwarmSchemas pins the wire schema for fleet-internal traffic so
// peers decode floats instead of raw fixed-point limbs.
func registerSwarmSchemas(c *nlc9.Codec) {
	_ = c.RegisterSchema(
		"SIGNAL", "TRADE",
		[]nlc9.ParamSpec{
			{Name: "strength", Kind: nlc9.KindFloat},
			{Name: "confidence", Kind: nlc9.KindFloat},
			{Name: "price", Kind: nlc9.KindAmount},
		},
	)
}

// Agents returns the fleet. The slice is read-only.
func (c *Coordinator) Agents() []*agent.Agent { return c.agents }

// Router exposes the swarm router, mainly for external injection of
// commands and for tests.
func (c *Coordinator) Router() *Router { return c.router }

// Start launches the fleet. Each agent gets a trading loop and a drain
// loop; the coordinator runs one coordination loop on top.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	for _, a := range c.agents {
		a := a
		c.wg.Add(2)
		go func() {
			defer c.wg.Done()
			a.RunTrading(ctx)
		}()
		go func() {
			defer c.wg.Done()
			a.RunDrain(ctx)
		}()
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()
	c.log.Info().Int("agents", len(c.agents)).Str("mode", string(c.opts.Mode)).Msg("swarm started")
}

// Stop shuts the fleet down and logs the final report.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.report(true)
}

func (c *Coordinator) loop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()
	tickCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.router.Inbox():
			c.absorb(msg)
		case <-ticker.C:
			tickCount++
			c.Tick(tickCount)
		}
	}
}

// absorb folds a coordinator-addressed message into swarm state.
func (c *Coordinator) absorb(msg signal.Message) {
	switch msg.Kind {
	case signal.KindStatus:
		if msg.Status != nil {
			c.mu.Lock()
			c.statuses[msg.From] = *msg.Status
			c.mu.Unlock()
		}
	case signal.KindEmergency:
		c.log.Warn().Str("from", msg.From).Str("reason", msg.Reason).Msg("emergency reported")
	default:
		c.log.Debug().Str("kind", string(msg.Kind)).Str("from", msg.From).Msg("coordinator ignoring message")
	}
}

// Tick runs one coordination pass: resolve ballots, check for a fleet
// emergency, rebalance, and report. Exported so tests and the CLI can
// drive coordination without the wall-clock loop.
func (c *Coordinator) Tick(n int) {
	for _, outcome := range c.engine.Evaluate() {
		c.router.Publish(outcome.CoordinationMessage(signal.CoordinatorID, c.now()))
	}

	if c.opts.EmergencyStop && c.anyHalted() {
		c.HaltAll("fleet emergency stop")
	}

	if c.shouldRebalance(n) {
		c.rebalance.Apply(c.agents)
	}
	c.report(false)
}

func (c *Coordinator) shouldRebalance(tick int) bool {
	switch c.opts.Mode {
	case ModeDecentralized:
		return false
	case ModeHybrid:
		return tick%hybridRebalanceEvery == 0
	default:
		return true
	}
}

func (c *Coordinator) anyHalted() bool {
	for _, a := range c.agents {
		if a.Halted() {
			return true
		}
	}
	return false
}

// HaltAll pushes every running agent into emergency stop.
func (c *Coordinator) HaltAll(reason string) {
	c.log.Warn().Str("reason", reason).Msg("halting fleet")
	c.router.Publish(signal.Message{
		From:   signal.CoordinatorID,
		To:     signal.Broadcast,
		Kind:   signal.KindEmergency,
		Reason: reason,
		Ts:     c.now(),
	})
}

// report logs the fleet snapshot; final reports include per-agent detail.
func (c *Coordinator) report(final bool) {
	var trades, successes int
	var profit float64
	for _, a := range c.agents {
		perf := a.Performance()
		trades += perf.Trades
		successes += perf.Successes
		profit += perf.Profit
		if final {
			c.log.Info().Str("agent", a.ID).Str("role", string(a.Role)).
				Int("trades", perf.Trades).Float64("profit", perf.Profit).
				Float64("success_rate", perf.SuccessRate).Msg("agent summary")
		}
	}
	ev := c.log.Debug()
	if final {
		ev = c.log.Info()
	}
	ev.Int("agents", len(c.agents)).Int("trades", trades).
		Int("successes", successes).Float64("profit", profit).
		Int("open_ballots", c.engine.Open()).Msg("fleet report")
}

// Statuses returns the latest self-reported status per agent.
func (c *Coordinator) Statuses() map[string]signal.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]signal.Status, len(c.statuses))
	for id, s := range c.statuses {
		out[id] = s
	}
	return out
}
