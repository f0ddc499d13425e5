package execution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"nlc9-swarm/internal/metrics"
)

// JupiterExecutor routes trade intents through the Jupiter aggregator on
// Solana. Simulated intents stop at the quote; live intents sign and
// submit the returned transaction.
type JupiterExecutor struct {
	Base   string
	RPC    *rpc.Client
	Wallet *Wallet
	Commit rpc.CommitmentType
	Http   *http.Client

	// Mints maps trading pair names to input/output token mints.
	Mints map[string]PairMints

	log zerolog.Logger
}

// PairMints identifies the two token mints behind a trading pair.
type PairMints struct {
	Input          string
	Output         string
	InputDecimals  int
	OutputDecimals int
}

type jupiterQuote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	OtherAmount    string `json:"otherAmountThreshold"`
	SlippageBps    int    `json:"slippageBps"`
	RoutePlan      any    `json:"routePlan"`
	PriceImpactPct string `json:"priceImpactPct"`
}

// NewJupiterExecutor builds a live executor against the given RPC and
// aggregator endpoints.
func NewJupiterExecutor(rpcURL, base string, wallet *Wallet, commit string, mints map[string]PairMints, log zerolog.Logger) *JupiterExecutor {
	c := rpc.CommitmentConfirmed
	switch commit {
	case "processed":
		c = rpc.CommitmentProcessed
	case "finalized":
		c = rpc.CommitmentFinalized
	}
	return &JupiterExecutor{
		Base:   base,
		RPC:    rpc.New(rpcURL),
		Wallet: wallet,
		Commit: c,
		Http:   &http.Client{Timeout: 8 * time.Second},
		Mints:  mints,
		log:    log.With().Str("component", "jupiter-exec").Logger(),
	}
}

// Submit quotes the pair and, unless simulating, signs and sends the swap.
// Venue failures come back as failed results wrapped in ErrExecution.
func (j *JupiterExecutor) Submit(ctx context.Context, intent Intent) (Result, error) {
	mints, ok := j.Mints[intent.Pair]
	if !ok {
		return Result{Err: "unknown pair"}, fmt.Errorf("%w: no mints for pair %s", ErrExecution, intent.Pair)
	}
	in, out := mints.Input, mints.Output
	inDec, outDec := mints.InputDecimals, mints.OutputDecimals
	if intent.Side == Sell {
		in, out = out, in
		inDec, outDec = outDec, inDec
	}

	units := uint64(intent.Amount * pow10(inDec))
	quote, err := j.getQuote(ctx, in, out, units, intent.SlippageBps)
	if err != nil {
		metrics.TradesTotal.WithLabelValues(intent.Agent, "failed").Inc()
		return Result{Err: err.Error()}, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	price := impliedPrice(quote, inDec, outDec)
	if intent.Simulate {
		return Result{Success: true, Price: price}, nil
	}

	sig, err := j.sendSwap(ctx, quote)
	if err != nil {
		metrics.TradesTotal.WithLabelValues(intent.Agent, "failed").Inc()
		return Result{Err: err.Error()}, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	metrics.TradesTotal.WithLabelValues(intent.Agent, "filled").Inc()
	j.log.Info().Str("agent", intent.Agent).Str("pair", intent.Pair).Str("sig", sig.String()).Msg("swap submitted")
	return Result{Success: true, Price: price, TxRef: sig.String()}, nil
}

func (j *JupiterExecutor) getQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiterQuote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("onlyDirectRoutes", "false")
	u := j.Base + "/v6/quote?" + q.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	resp, err := j.Http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter quote status %d", resp.StatusCode)
	}
	var out jupiterQuote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// sendSwap asks Jupiter for a ready-to-sign transaction, signs it locally,
// then submits via RPC.
func (j *JupiterExecutor) sendSwap(ctx context.Context, quote *jupiterQuote) (solana.Signature, error) {
	var sig solana.Signature
	payload := map[string]any{
		"userPublicKey":             j.Wallet.PublicKey().String(),
		"wrapAndUnwrapSol":          true,
		"asLegacyTransaction":       false,
		"useTokenLedger":            false,
		"prioritizationFeeLamports": 0,
		"quoteResponse":             quote,
	}
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, j.Base+"/v6/swap", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := j.Http.Do(req)
	if err != nil {
		return sig, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sig, fmt.Errorf("jupiter swap status %d", resp.StatusCode)
	}

	var sr struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return sig, err
	}

	raw, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return sig, fmt.Errorf("decode tx: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return sig, fmt.Errorf("unmarshal tx: %w", err)
	}
	if _, err = tx.Sign(j.Wallet.Signer()); err != nil {
		return sig, fmt.Errorf("sign: %w", err)
	}

	return j.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: j.Commit,
	})
}

// impliedPrice converts the raw quote amounts into token units before
// dividing, so pairs whose mints carry different decimals price correctly.
func impliedPrice(q *jupiterQuote, inDecimals, outDecimals int) float64 {
	in, errIn := strconv.ParseFloat(q.InAmount, 64)
	out, errOut := strconv.ParseFloat(q.OutAmount, 64)
	if errIn != nil || errOut != nil || in <= 0 {
		return 0
	}
	return (out / pow10(outDecimals)) / (in / pow10(inDecimals))
}

func pow10(n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}
