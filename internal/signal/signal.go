// Package signal standardizes the payloads agents exchange through the
// swarm router.
package signal

import (
	"time"

	"nlc9-swarm/internal/nlc9"
)

// Direction is the trading bias a signal expresses.
type Direction string

const (
	Buy   Direction = "BUY"
	Sell  Direction = "SELL"
	Hold  Direction = "HOLD"
	Alert Direction = "ALERT"
)

// Signal is an ephemeral decision artifact produced by an agent's analysis
// step. Strength and Confidence are both in [0,1].
type Signal struct {
	Direction  Direction
	Strength   float64
	Confidence float64
	Token      string
	Price      float64
	Volume     float64
	Origin     string
	Ts         time.Time
	Meta       map[string]string
}

// Kind classifies a swarm message.
type Kind string

const (
	KindSignal       Kind = "SIGNAL"
	KindCommand      Kind = "COMMAND"
	KindStatus       Kind = "STATUS"
	KindCoordination Kind = "COORDINATION"
	KindEmergency    Kind = "EMERGENCY"
)

// Broadcast addresses a message to every agent except the sender.
const Broadcast = "*"

// CoordinatorID addresses the coordinator's own inbox.
const CoordinatorID = "coordinator"

// Coordination carries a consensus outcome back to the fleet: the winning
// vote payload and the realized vote fraction.
type Coordination struct {
	Action    string
	Payload   map[string]string
	Consensus float64
}

// Status is the per-cycle performance snapshot an agent reports.
type Status struct {
	State       string
	Trades      int
	Successes   int
	Profit      float64
	Position    float64
	SuccessRate float64
}

// Message is one unit of inter-agent communication. Exactly one of the
// kind-specific fields is populated; Frame optionally carries the NLC-9
// wire form of the same message.
type Message struct {
	From         string
	To           string
	Kind         Kind
	Signal       *Signal
	Command      string
	Coordination *Coordination
	Status       *Status
	Reason       string
	Frame        *nlc9.Frame
	Ts           time.Time
}
