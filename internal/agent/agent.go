// Package agent implements the per-agent runtime: a role-driven trading
// cycle and an independent message-drain loop, communicating with the rest
// of the fleet only through the swarm router.
package agent

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nlc9-swarm/internal/execution"
	"nlc9-swarm/internal/market"
	"nlc9-swarm/internal/metrics"
	"nlc9-swarm/internal/nlc9"
	"nlc9-swarm/internal/signal"
	"nlc9-swarm/internal/strategy"
)

// Role determines which analysis behavior an agent runs each cycle.
type Role string

const (
	RoleLeader      Role = "LEADER"
	RoleFollower    Role = "FOLLOWER"
	RoleArbitrage   Role = "ARBITRAGE"
	RoleMarketMaker Role = "MARKET_MAKER"
	RoleScout       Role = "SCOUT"
	RoleLiquidator  Role = "LIQUIDATOR"
)

// State is the agent's lifecycle phase.
type State string

const (
	StateIdle          State = "IDLE"
	StateAnalyzing     State = "ANALYZING"
	StateTrading       State = "TRADING"
	StateWaiting       State = "WAITING"
	StateEmergencyStop State = "EMERGENCY_STOP"
)

var stateGaugeValue = map[State]float64{
	StateIdle: 0, StateAnalyzing: 1, StateTrading: 2, StateWaiting: 3, StateEmergencyStop: 4,
}

// Publisher is the outbound half of the swarm router as seen by one agent.
type Publisher interface {
	Publish(msg signal.Message)
}

// Config declares one agent in the swarm configuration.
type Config struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Role        Role     `yaml:"role"`
	Strategy    string   `yaml:"strategy"`
	Pairs       []string `yaml:"pairs"`
	Capital     float64  `yaml:"capital"`
	MaxPosition float64  `yaml:"max_position"`
	QueueSize   int      `yaml:"queue_size"`
}

// Agent is one member of the fleet. All mutable runtime state is owned by
// the agent itself; peers interact only through the inbound queue.
type Agent struct {
	ID   string
	Name string
	Role Role

	mu          sync.Mutex
	profile     strategy.Profile
	state       State
	book        *book
	trades      int
	successes   int
	tradeTimes  []time.Time
	lastTrade   time.Time
	halted      bool
	maxPosition float64

	pairs []string
	queue chan signal.Message

	market market.Source
	exec   execution.Executor
	out    Publisher
	codec  *nlc9.Codec
	log    zerolog.Logger
	rng    *rand.Rand
	now    func() time.Time
}

// Deps are the collaborators injected into every agent at swarm init.
type Deps struct {
	Market market.Source
	Exec   execution.Executor
	Out    Publisher
	Codec  *nlc9.Codec
	Log    zerolog.Logger
	Seed   int64
}

// New builds an agent from its config entry and collaborator set.
func New(cfg Config, deps Deps) *Agent {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	capital := cfg.Capital
	if capital <= 0 {
		capital = 10_000
	}
	prof := strategy.Build(cfg.Strategy)
	maxPosition := cfg.MaxPosition
	if maxPosition <= 0 {
		// Default cap: what the profile would commit across four full entries.
		maxPosition = capital * prof.PositionSizePct * 4
	}
	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}
	return &Agent{
		ID:          cfg.ID,
		Name:        name,
		Role:        cfg.Role,
		profile:     prof,
		state:       StateIdle,
		book:        newBook(capital),
		maxPosition: maxPosition,
		pairs:       append([]string(nil), cfg.Pairs...),
		queue:       make(chan signal.Message, queueSize),
		market:      deps.Market,
		exec:        deps.Exec,
		out:         deps.Out,
		codec:       deps.Codec,
		log:         deps.Log.With().Str("agent", cfg.ID).Str("role", string(cfg.Role)).Logger(),
		rng:         rand.New(rand.NewSource(deps.Seed)),
		now:         time.Now,
	}
}

// Enqueue offers a message to the agent's bounded inbox, reporting whether
// it was accepted. The router drops (and counts) rejected messages.
func (a *Agent) Enqueue(msg signal.Message) bool {
	select {
	case a.queue <- msg:
		return true
	default:
		return false
	}
}

// Inbox exposes the agent's bounded message queue.
func (a *Agent) Inbox() <-chan signal.Message { return a.queue }

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	metrics.AgentState.WithLabelValues(a.ID).Set(stateGaugeValue[s])
}

// State returns the current lifecycle phase.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Halted reports whether the agent has entered EMERGENCY_STOP.
func (a *Agent) Halted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.halted
}

// Profile returns a copy of the current strategy parameters.
func (a *Agent) Profile() strategy.Profile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profile
}

// Profit returns cumulative realized profit.
func (a *Agent) Profit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book.realized
}

// AddProfit credits (or debits) realized profit directly; used by
// profit sharing between coordination ticks.
func (a *Agent) AddProfit(delta float64) {
	a.mu.Lock()
	a.book.realized += delta
	a.book.cash += delta
	a.mu.Unlock()
}

// ThrottleRisk scales down position sizing and decrements the hourly trade
// budget. Repeated application is safe: sizing stays positive and the trade
// budget never drops below one.
func (a *Agent) ThrottleRisk(damping float64, step int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if damping > 0 && damping < 1 {
		a.profile.PositionSizePct *= damping
	}
	if step > 0 {
		a.profile.MaxTradesPerHour -= step
		if a.profile.MaxTradesPerHour < 1 {
			a.profile.MaxTradesPerHour = 1
		}
	}
	metrics.RebalanceThrottles.Inc()
}

// Performance assembles the status snapshot reported each cycle.
func (a *Agent) Performance() signal.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	rate := 0.0
	if a.trades > 0 {
		rate = float64(a.successes) / float64(a.trades)
	}
	return signal.Status{
		State:       string(a.state),
		Trades:      a.trades,
		Successes:   a.successes,
		Profit:      a.book.realized,
		Position:    a.book.positionSize(),
		SuccessRate: rate,
	}
}

func (a *Agent) tradesInTrailingHour(now time.Time) int {
	cutoff := now.Add(-time.Hour)
	// Prune while counting; the slice only ever holds the trailing window.
	kept := a.tradeTimes[:0]
	for _, ts := range a.tradeTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	a.tradeTimes = kept
	return len(kept)
}
