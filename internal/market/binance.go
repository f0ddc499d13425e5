package market

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const liveQuoteMaxAge = 30 * time.Second

// LiveFeed overlays live Binance trade prices on a simulated venue: quotes
// come from the stream while it is fresh, pool spreads and liquidation
// candidates stay simulated around the live price.
type LiveFeed struct {
	stub    *Stub
	log     zerolog.Logger
	symbols []string

	mu   sync.RWMutex
	last map[string]Quote
}

// NewLiveFeed wraps a simulated venue with a live reference-price stream
// for the given symbols.
func NewLiveFeed(stub *Stub, symbols []string, log zerolog.Logger) *LiveFeed {
	return &LiveFeed{
		stub:    stub,
		log:     log.With().Str("component", "market-feed").Logger(),
		symbols: symbols,
		last:    make(map[string]Quote, len(symbols)),
	}
}

type streamEnvelope struct {
	Stream string      `json:"stream"`
	Data   streamTrade `json:"data"`
}

type streamTrade struct {
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// Run consumes the combined trade stream until the context is canceled,
// reconnecting with exponential backoff.
func (f *LiveFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		return fmt.Errorf("live feed requires at least one symbol")
	}

	streams := make([]string, len(f.symbols))
	for i, sym := range f.symbols {
		streams[i] = strings.ToLower(sym) + "@trade"
	}
	url := fmt.Sprintf("wss://stream.binance.com:9443/stream?streams=%s", strings.Join(streams, "/"))

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consume(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("reference feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *LiveFeed) consume(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Strs("symbols", f.symbols).Msg("connected reference price feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var env streamEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		price, err := strconv.ParseFloat(env.Data.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		qty, _ := strconv.ParseFloat(env.Data.Quantity, 64)

		f.mu.Lock()
		f.last[env.Data.Symbol] = Quote{
			Pair:   env.Data.Symbol,
			Price:  price,
			Volume: qty * price,
			Ts:     time.UnixMilli(env.Data.TradeTime),
		}
		f.mu.Unlock()
	}
}

// Quote prefers a fresh live observation and falls back to the simulation.
func (f *LiveFeed) Quote(pair string) (Quote, bool) {
	f.mu.RLock()
	q, ok := f.last[pair]
	f.mu.RUnlock()
	if ok && time.Since(q.Ts) < liveQuoteMaxAge {
		return q, true
	}
	return f.stub.Quote(pair)
}

// PoolQuotes recenters the simulated pool spread on the live price when one
// is available.
func (f *LiveFeed) PoolQuotes(pair string) []PoolQuote {
	quotes := f.stub.PoolQuotes(pair)
	f.mu.RLock()
	live, ok := f.last[pair]
	f.mu.RUnlock()
	if !ok || time.Since(live.Ts) >= liveQuoteMaxAge {
		return quotes
	}
	for i := range quotes {
		ratio := 1.0
		if base, okBase := f.stub.currentPrice(pair); okBase && base > 0 {
			ratio = quotes[i].Price / base
		}
		quotes[i].Price = live.Price * ratio
	}
	return quotes
}

// RiskyPositions delegates to the simulation.
func (f *LiveFeed) RiskyPositions() []LendingPosition { return f.stub.RiskyPositions() }

// Condition delegates to the simulation.
func (f *LiveFeed) Condition() Condition { return f.stub.Condition() }
