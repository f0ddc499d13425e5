// Package swarm wires agents together: the message router, the consensus
// engine, the performance rebalancer, and the coordinator that runs them.
package swarm

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nlc9-swarm/internal/metrics"
	"nlc9-swarm/internal/signal"
)

// Outcome is a resolved ballot: the winning payload and the vote fraction
// that carried it.
type Outcome struct {
	Topic     string
	Payload   map[string]string
	Consensus float64
}

type ballot struct {
	opened time.Time
	// votes holds the latest payload per voter; re-voting replaces.
	votes map[string]map[string]string
	// order remembers first appearance of each distinct payload for
	// deterministic tie-breaking.
	order []string
}

// Engine tallies votes per topic and resolves ballots once enough of the
// fleet has weighed in.
type Engine struct {
	mu        sync.Mutex
	ballots   map[string]*ballot
	threshold float64
	ttl       time.Duration
	total     int
	log       zerolog.Logger
	now       func() time.Time
}

// NewEngine builds a consensus engine. threshold is the required fraction
// of totalAgents; ttl of zero keeps ballots open indefinitely.
func NewEngine(threshold float64, ttl time.Duration, totalAgents int, log zerolog.Logger) *Engine {
	return &Engine{
		ballots:   make(map[string]*ballot),
		threshold: threshold,
		ttl:       ttl,
		total:     totalAgents,
		log:       log,
		now:       time.Now,
	}
}

// SetTotal updates the fleet size the vote fraction is computed against.
func (e *Engine) SetTotal(n int) {
	e.mu.Lock()
	e.total = n
	e.mu.Unlock()
}

// RecordVote registers one agent's position on a topic. A voter's later
// vote replaces its earlier one.
func (e *Engine) RecordVote(topic, voter string, payload map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.ballots[topic]
	if !ok {
		b = &ballot{opened: e.now(), votes: make(map[string]map[string]string)}
		e.ballots[topic] = b
	}
	key := payloadKey(payload)
	if !containsKey(b.order, key) {
		b.order = append(b.order, key)
	}
	b.votes[voter] = payload
	metrics.VotesRecorded.Inc()
	e.log.Debug().Str("topic", topic).Str("voter", voter).Int("votes", len(b.votes)).Msg("vote recorded")
}

// Evaluate resolves every ballot whose participation has reached the
// threshold and expires the ones past their TTL. Resolved ballots are
// removed; a topic can be voted on again afterwards.
func (e *Engine) Evaluate() []Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	var outcomes []Outcome
	for topic, b := range e.ballots {
		if e.ttl > 0 && now.Sub(b.opened) > e.ttl {
			delete(e.ballots, topic)
			metrics.BallotsExpired.Inc()
			e.log.Debug().Str("topic", topic).Int("votes", len(b.votes)).Msg("ballot expired")
			continue
		}
		if e.total <= 0 {
			continue
		}
		fraction := float64(len(b.votes)) / float64(e.total)
		if fraction < e.threshold {
			continue
		}
		payload := b.winner()
		delete(e.ballots, topic)
		metrics.BallotsResolved.Inc()
		outcomes = append(outcomes, Outcome{Topic: topic, Payload: payload, Consensus: fraction})
		e.log.Info().Str("topic", topic).Float64("consensus", fraction).Msg("ballot resolved")
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Topic < outcomes[j].Topic })
	return outcomes
}

// Open reports how many ballots are currently pending.
func (e *Engine) Open() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ballots)
}

// winner picks the payload with the most exact matches; ties go to the
// payload that appeared first.
func (b *ballot) winner() map[string]string {
	counts := make(map[string]int)
	byKey := make(map[string]map[string]string)
	for _, payload := range b.votes {
		key := payloadKey(payload)
		counts[key]++
		byKey[key] = payload
	}
	bestKey := ""
	bestCount := -1
	for _, key := range b.order {
		if counts[key] > bestCount {
			bestKey = key
			bestCount = counts[key]
		}
	}
	return byKey[bestKey]
}

// payloadKey serializes a payload deterministically so exact-match
// counting works regardless of map iteration order.
func payloadKey(payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(payload[k])
		sb.WriteByte('\n')
	}
	return sb.String()
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// CoordinationMessage converts a resolved outcome into the broadcast sent
// back to the fleet.
func (o Outcome) CoordinationMessage(from string, ts time.Time) signal.Message {
	return signal.Message{
		From: from,
		To:   signal.Broadcast,
		Kind: signal.KindCoordination,
		Coordination: &signal.Coordination{
			Action:    o.Topic,
			Payload:   o.Payload,
			Consensus: o.Consensus,
		},
		Ts: ts,
	}
}
