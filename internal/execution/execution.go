// Package execution handles trade submission. The swarm treats every
// executor as an opaque, possibly-failing remote collaborator: it sees
// nothing beyond the returned result.
package execution

import (
	"context"
	"errors"
	"time"
)

// ErrExecution wraps any venue-side failure. Agents absorb these into
// per-trade status; they never escalate.
var ErrExecution = errors.New("execution: trade failed")

// Side enumerates order directions.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Intent is one trade request.
type Intent struct {
	Agent       string
	Pair        string
	Side        Side
	Amount      float64
	SlippageBps int
	Simulate    bool
}

// Result is the venue's answer to an intent.
type Result struct {
	Success bool
	Price   float64
	TxRef   string
	Err     string
}

// Fill is the journal record of one completed trade.
type Fill struct {
	Ref    string    `json:"ref"`
	Agent  string    `json:"agent"`
	Pair   string    `json:"pair"`
	Side   Side      `json:"side"`
	Amount float64   `json:"amount"`
	Price  float64   `json:"price"`
	Ts     time.Time `json:"ts"`
}

// Executor submits trade intents to some venue.
type Executor interface {
	Submit(ctx context.Context, intent Intent) (Result, error)
}
