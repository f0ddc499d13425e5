package nlc9

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCodec() *Codec {
	c := New(zerolog.Nop())
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	c.corr = func() uint32 { return 0xDEADBEEF }
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newTestCodec()
	if err := c.RegisterSchema("EXEC", "TRADE", []ParamSpec{
		{Name: "amount", Kind: KindAmount, Scale: 1_000_000},
		{Name: "slippage", Kind: KindPercent},
		{Name: "urgent", Kind: KindBool},
	}); err != nil {
		t.Fatalf("register schema: %v", err)
	}

	flags, err := ParseFlags([]string{"ack", "URGENT"})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	f, err := c.Encode(EncodeRequest{
		Verb:   "EXEC",
		Object: "TRADE",
		Params: map[string]any{"amount": 12.5, "slippage": 0.5, "urgent": true},
		Flags:  flags,
		Domain: "oneainetwork.com",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if f.ParamA != 12_500_000 {
		t.Fatalf("expected amount limb 12500000, got %d", f.ParamA)
	}

	wire := f.Marshal()
	if len(wire) != FrameSize {
		t.Fatalf("expected %d wire bytes, got %d", FrameSize, len(wire))
	}

	d, err := c.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Verb != "EXEC" || d.Object != "TRADE" {
		t.Fatalf("symbolic decode mismatch: %s/%s", d.Verb, d.Object)
	}
	if d.ObjectID != c.Registry.ObjectID("TRADE") {
		t.Fatalf("object id mismatch")
	}
	if got := d.Params["amount"].(float64); got != 12.5 {
		t.Fatalf("expected amount 12.5, got %v", got)
	}
	if got := d.Params["slippage"].(float64); got != 0.5 {
		t.Fatalf("expected slippage 0.5, got %v", got)
	}
	if got := d.Params["urgent"].(bool); !got {
		t.Fatalf("expected urgent true")
	}
	if d.Flags&FlagAck == 0 || d.Flags&FlagUrgent == 0 {
		t.Fatalf("flags not preserved: %v", d.Flags.Names())
	}
	if d.Domain != DomainID("oneainetwork.com") {
		t.Fatalf("domain mismatch: %d", d.Domain)
	}
}

func TestEncodeDeterminism(t *testing.T) {
	c := newTestCodec()
	corr := uint32(42)
	req := EncodeRequest{
		Verb:      "REPORT",
		Object:    "HEALTH",
		Params:    map[string]any{"x": 1, "y": 2},
		Timestamp: 1_700_000_123,
		CorrID:    &corr,
	}
	first, err := c.Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := c.Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if first != second {
		t.Fatalf("same request produced different frames:\n%v\n%v", first, second)
	}
	if first.Hex() != second.Hex() {
		t.Fatalf("hex renderings differ")
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	c := newTestCodec()
	if _, err := c.Decode(make([]byte, 35)); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	if _, err := c.Decode(make([]byte, 37)); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestDecodeRejectsEverySingleBitFlip(t *testing.T) {
	c := newTestCodec()
	f, err := c.Encode(EncodeRequest{
		Verb:   "SIGNAL",
		Object: "SWARM",
		Params: map[string]any{"score": 0.9},
		Domain: "fleet",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	clean := f.Marshal()

	for bit := 0; bit < FrameSize*8; bit++ {
		corrupted := make([]byte, FrameSize)
		copy(corrupted, clean)
		corrupted[bit/8] ^= 1 << (bit % 8)

		if _, err := c.Decode(corrupted); !errors.Is(err, ErrIntegrity) {
			t.Fatalf("bit %d flip not caught: %v", bit, err)
		}
	}
}

func TestEncodeSchemaErrors(t *testing.T) {
	c := newTestCodec()
	min, max := 0.0, 100.0
	if err := c.RegisterSchema("SET", "ENV", []ParamSpec{
		{Name: "level", Kind: KindFloat, Min: &min, Max: &max},
	}); err != nil {
		t.Fatalf("register schema: %v", err)
	}

	_, err := c.Encode(EncodeRequest{Verb: "SET", Object: "ENV", Params: map[string]any{"bogus": 1}})
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected schema error for undeclared param, got %v", err)
	}

	_, err = c.Encode(EncodeRequest{Verb: "SET", Object: "ENV", Params: map[string]any{"level": 250.0}})
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected schema error for out-of-bounds value, got %v", err)
	}
}

func TestEncodeRangeOverflow(t *testing.T) {
	c := newTestCodec()
	if err := c.RegisterSchema("EXEC", "POOL", []ParamSpec{
		{Name: "notional", Kind: KindAmount, Scale: 1_000_000},
	}); err != nil {
		t.Fatalf("register schema: %v", err)
	}

	// 5000 * 1e6 exceeds uint32.
	_, err := c.Encode(EncodeRequest{Verb: "EXEC", Object: "POOL", Params: map[string]any{"notional": 5000.0}})
	if !errors.Is(err, ErrRange) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestDecodeWithoutSchemaYieldsRawLimbs(t *testing.T) {
	c := newTestCodec()
	f, err := c.Encode(EncodeRequest{
		Verb:   "TELL",
		Object: "EVENT",
		Params: map[string]any{"a": 7, "b": 9},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d, err := c.Decode(f.Marshal())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.HasSchema {
		t.Fatalf("expected schemaless decode")
	}
	if d.Params["paramA"].(uint32) != 7 || d.Params["paramB"].(uint32) != 9 {
		t.Fatalf("raw limbs not surfaced: %v", d.Params)
	}
}

func TestRegisterSchemaLimits(t *testing.T) {
	c := newTestCodec()
	four := []ParamSpec{
		{Name: "a", Kind: KindInt}, {Name: "b", Kind: KindInt},
		{Name: "c", Kind: KindInt}, {Name: "d", Kind: KindInt},
	}
	if err := c.RegisterSchema("GET", "FILE", four); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected schema error for four params, got %v", err)
	}
	if err := c.RegisterSchema("GET", "FILE", []ParamSpec{{Name: "", Kind: KindInt}}); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected schema error for empty name, got %v", err)
	}
	if err := c.RegisterSchema("GET", "FILE", []ParamSpec{{Name: "x", Kind: "blob"}}); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected schema error for unknown kind, got %v", err)
	}
}
