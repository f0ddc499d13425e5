package swarm

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nlc9-swarm/internal/agent"
	"nlc9-swarm/internal/signal"
)

func newIdleAgent(id string, queueSize int) *agent.Agent {
	return agent.New(agent.Config{
		ID: id, Role: agent.RoleScout, Strategy: "BALANCED", QueueSize: queueSize,
	}, agent.Deps{Log: zerolog.Nop(), Seed: 1})
}

func drainOne(t *testing.T, a *agent.Agent) signal.Message {
	t.Helper()
	select {
	case msg := <-a.Inbox():
		return msg
	default:
		t.Fatalf("agent %s received nothing", a.ID)
		return signal.Message{}
	}
}

func TestRouterBroadcastExcludesSender(t *testing.T) {
	r := NewRouter(nil, 0, zerolog.Nop())
	sender := newIdleAgent("a1", 4)
	peer1 := newIdleAgent("a2", 4)
	peer2 := newIdleAgent("a3", 4)
	for _, a := range []*agent.Agent{sender, peer1, peer2} {
		r.Register(a)
	}

	r.Publish(signal.Message{From: "a1", To: signal.Broadcast, Kind: signal.KindCommand, Command: "hello"})

	for _, peer := range []*agent.Agent{peer1, peer2} {
		if got := drainOne(t, peer); got.Command != "hello" {
			t.Fatalf("peer %s got %+v", peer.ID, got)
		}
	}
	select {
	case msg := <-sender.Inbox():
		t.Fatalf("sender received its own broadcast: %+v", msg)
	default:
	}
}

func TestRouterUnicastAndUnknownDrop(t *testing.T) {
	r := NewRouter(nil, 0, zerolog.Nop())
	a1 := newIdleAgent("a1", 4)
	a2 := newIdleAgent("a2", 4)
	r.Register(a1)
	r.Register(a2)

	r.Publish(signal.Message{From: "a1", To: "a2", Kind: signal.KindCommand, Command: "direct"})
	if got := drainOne(t, a2); got.Command != "direct" {
		t.Fatalf("unicast payload = %+v", got)
	}

	// Unknown recipient: dropped without panic or delivery.
	r.Publish(signal.Message{From: "a1", To: "ghost", Kind: signal.KindCommand})
	select {
	case msg := <-a1.Inbox():
		t.Fatalf("unexpected delivery: %+v", msg)
	default:
	}
}

func TestRouterDropsOnFullQueue(t *testing.T) {
	r := NewRouter(nil, 0, zerolog.Nop())
	a1 := newIdleAgent("a1", 1)
	r.Register(a1)

	r.Publish(signal.Message{From: "x", To: "a1", Kind: signal.KindCommand, Command: "first"})
	r.Publish(signal.Message{From: "x", To: "a1", Kind: signal.KindCommand, Command: "second"})

	if got := drainOne(t, a1); got.Command != "first" {
		t.Fatalf("kept message = %+v, want the first", got)
	}
	select {
	case msg := <-a1.Inbox():
		t.Fatalf("overflow message delivered: %+v", msg)
	default:
	}
}

func TestRouterCoordinatorInbox(t *testing.T) {
	r := NewRouter(nil, 2, zerolog.Nop())

	status := signal.Status{Trades: 3}
	r.Publish(signal.Message{From: "a1", To: signal.CoordinatorID, Kind: signal.KindStatus, Status: &status})

	select {
	case msg := <-r.Inbox():
		if msg.Status == nil || msg.Status.Trades != 3 {
			t.Fatalf("inbox message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("coordinator inbox empty")
	}
}

func TestRouterHighConfidenceSignalCastsImplicitVote(t *testing.T) {
	engine, _ := newTestEngine(0.5, 0, 2)
	r := NewRouter(engine, 0, zerolog.Nop())
	r.Register(newIdleAgent("a1", 4))
	r.Register(newIdleAgent("a2", 4))

	weak := signal.Signal{Direction: signal.Buy, Confidence: 0.8, Token: "SOL/USDC"}
	r.Publish(signal.Message{From: "a1", To: signal.Broadcast, Kind: signal.KindSignal, Signal: &weak})
	if engine.Open() != 0 {
		t.Fatal("confidence of exactly 0.8 should not vote")
	}

	strong := signal.Signal{Direction: signal.Buy, Confidence: 0.9, Token: "SOL/USDC"}
	r.Publish(signal.Message{From: "a1", To: signal.Broadcast, Kind: signal.KindSignal, Signal: &strong})
	if engine.Open() != 1 {
		t.Fatal("confident signal should open a ballot")
	}

	outcomes := engine.Evaluate()
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1 (1 of 2 agents meets 0.5)", len(outcomes))
	}
	if outcomes[0].Topic != "signal/SOL/USDC" || outcomes[0].Payload["direction"] != "BUY" {
		t.Fatalf("outcome = %+v", outcomes[0])
	}
}
