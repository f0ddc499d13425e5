package swarm

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"nlc9-swarm/internal/agent"
	"nlc9-swarm/internal/metrics"
	"nlc9-swarm/internal/signal"
)

// implicitVoteConfidence is the bar above which a routed trading signal
// also counts as a consensus vote on its token's direction.
const implicitVoteConfidence = 0.8

// Router fans messages out across the fleet. It is the only path between
// agents; nothing holds a direct reference to a peer.
type Router struct {
	mu        sync.RWMutex
	agents    map[string]*agent.Agent
	inbox     chan signal.Message // coordinator-addressed traffic
	consensus *Engine
	log       zerolog.Logger
}

// NewRouter builds a router feeding the given consensus engine. inboxSize
// bounds coordinator-addressed traffic the same way agent queues are
// bounded.
func NewRouter(consensus *Engine, inboxSize int, log zerolog.Logger) *Router {
	if inboxSize <= 0 {
		inboxSize = 256
	}
	return &Router{
		agents:    make(map[string]*agent.Agent),
		inbox:     make(chan signal.Message, inboxSize),
		consensus: consensus,
		log:       log,
	}
}

// Register adds an agent to the routing table.
func (r *Router) Register(a *agent.Agent) {
	r.mu.Lock()
	r.agents[a.ID] = a
	r.mu.Unlock()
	if r.consensus != nil {
		r.consensus.SetTotal(r.size())
	}
}

// Inbox exposes the coordinator-addressed message stream.
func (r *Router) Inbox() <-chan signal.Message { return r.inbox }

func (r *Router) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Publish routes one message: broadcast to everyone but the sender,
// unicast to a known recipient, or silently dropped when the recipient
// does not exist. High-confidence trading signals additionally cast an
// implicit consensus vote.
func (r *Router) Publish(msg signal.Message) {
	r.maybeVote(msg)

	if msg.To == signal.CoordinatorID {
		select {
		case r.inbox <- msg:
			metrics.MessagesRouted.WithLabelValues("coordinator").Inc()
		default:
			metrics.MessagesDropped.WithLabelValues("coordinator_full").Inc()
			r.log.Warn().Str("from", msg.From).Msg("coordinator inbox full, dropping")
		}
		return
	}

	if msg.To == signal.Broadcast {
		r.mu.RLock()
		targets := make([]*agent.Agent, 0, len(r.agents))
		for id, a := range r.agents {
			if id == msg.From {
				continue
			}
			targets = append(targets, a)
		}
		r.mu.RUnlock()
		for _, a := range targets {
			r.deliver(a, msg)
		}
		metrics.MessagesRouted.WithLabelValues("broadcast").Inc()
		return
	}

	r.mu.RLock()
	target, ok := r.agents[msg.To]
	r.mu.RUnlock()
	if !ok {
		// Unknown recipients are dropped without error per routing contract.
		metrics.MessagesDropped.WithLabelValues("unknown_recipient").Inc()
		r.log.Debug().Str("to", msg.To).Str("from", msg.From).Msg("dropping message for unknown agent")
		return
	}
	r.deliver(target, msg)
	metrics.MessagesRouted.WithLabelValues("unicast").Inc()
}

func (r *Router) deliver(a *agent.Agent, msg signal.Message) {
	if !a.Enqueue(msg) {
		metrics.MessagesDropped.WithLabelValues("queue_full").Inc()
		r.log.Warn().Str("to", a.ID).Str("kind", string(msg.Kind)).Msg("agent queue full, dropping")
	}
}

// maybeVote turns a confident trading signal into a consensus vote on the
// token's direction.
func (r *Router) maybeVote(msg signal.Message) {
	if r.consensus == nil || msg.Kind != signal.KindSignal || msg.Signal == nil {
		return
	}
	s := msg.Signal
	if s.Confidence <= implicitVoteConfidence {
		return
	}
	topic := fmt.Sprintf("signal/%s", s.Token)
	r.consensus.RecordVote(topic, msg.From, map[string]string{
		"direction": string(s.Direction),
		"token":     s.Token,
	})
}
