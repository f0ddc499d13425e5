package nlc9

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nlc9-swarm/internal/metrics"
)

// Codec owns the verb/object registry and the schema table, and performs
// all frame encoding and decoding for one process.
type Codec struct {
	Registry *Registry

	mu      sync.RWMutex
	schemas map[schemaKey][]ParamSpec

	log  zerolog.Logger
	now  func() time.Time
	corr func() uint32
}

// New builds a codec with seeded registries and an empty schema table.
func New(log zerolog.Logger) *Codec {
	return &Codec{
		Registry: NewRegistry(),
		schemas:  make(map[schemaKey][]ParamSpec),
		log:      log.With().Str("component", "nlc9").Logger(),
		now:      time.Now,
		corr:     randomCorr,
	}
}

func randomCorr() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the platform entropy source is broken;
		// a nonce derived from the clock keeps encoding usable.
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(b[:])
}

// EncodeRequest carries everything needed to mint one frame. Zero Timestamp
// means "now"; nil CorrID means "fresh random nonce".
type EncodeRequest struct {
	Verb      string
	Object    string
	Params    map[string]any
	Flags     Flag
	Domain    string
	Timestamp uint32
	CorrID    *uint32
}

// Encode resolves names, types the parameters, and returns a sealed frame.
// Encoding the same request with the same timestamp and correlation id is
// byte-deterministic.
func (c *Codec) Encode(req EncodeRequest) (Frame, error) {
	verbID := c.Registry.VerbID(req.Verb)
	objectID := c.Registry.ObjectID(req.Object)

	a, b, pc, err := c.encodeParams(verbID, objectID, req.Params)
	if err != nil {
		return Frame{}, err
	}

	ts := req.Timestamp
	if ts == 0 {
		ts = uint32(c.now().Unix())
	}
	corr := c.corr()
	if req.CorrID != nil {
		corr = *req.CorrID
	}

	f := Frame{
		Header:    PackHeader(Version, req.Flags, DomainID(req.Domain)),
		VerbID:    verbID,
		ObjectID:  objectID,
		ParamA:    a,
		ParamB:    b,
		ParamC:    pc,
		Timestamp: ts,
		CorrID:    corr,
	}.Seal()

	metrics.FramesEncoded.WithLabelValues(c.Registry.VerbName(verbID)).Inc()
	return f, nil
}

// Decoded is the expanded view of a verified frame. Params holds typed
// values when a schema is registered for the verb/object pair, otherwise
// the raw limbs under paramA/paramB/paramC.
type Decoded struct {
	Frame     Frame
	Version   uint8
	Flags     Flag
	Domain    uint16
	VerbID    uint32
	Verb      string
	ObjectID  uint32
	Object    string
	Params    map[string]any
	HasSchema bool
}

// Decode verifies and expands a 36-byte frame. Integrity failures are
// logged and counted; the caller must discard the frame.
func (c *Codec) Decode(b []byte) (Decoded, error) {
	f, err := Unmarshal(b)
	if err != nil {
		metrics.DecodeFailures.WithLabelValues("format").Inc()
		return Decoded{}, err
	}
	return c.DecodeFrame(f)
}

// DecodeFrame verifies and expands an already-unpacked frame.
func (c *Codec) DecodeFrame(f Frame) (Decoded, error) {
	if !f.Verify() {
		metrics.DecodeFailures.WithLabelValues("integrity").Inc()
		c.log.Warn().
			Uint32("stored", f.Checksum).
			Uint32("computed", f.ComputeChecksum()).
			Msg("discarding frame with bad checksum")
		return Decoded{}, fmt.Errorf("%w: stored %d computed %d", ErrIntegrity, f.Checksum, f.ComputeChecksum())
	}
	d, _ := c.Expand(f)
	metrics.FramesDecoded.Inc()
	return d, nil
}

// Expand decodes a frame without enforcing integrity and reports whether
// the stored checksum matches. The gateway surfaces the flag to callers
// instead of rejecting the frame outright.
func (c *Codec) Expand(f Frame) (Decoded, bool) {
	version, flags, domain := UnpackHeader(f.Header)
	d := Decoded{
		Frame:    f,
		Version:  version,
		Flags:    flags,
		Domain:   domain,
		VerbID:   f.VerbID,
		Verb:     c.Registry.VerbName(f.VerbID),
		ObjectID: f.ObjectID,
		Object:   c.Registry.ObjectName(f.ObjectID),
	}
	d.Params, d.HasSchema = c.decodeParams(f.VerbID, f.ObjectID, f.ParamA, f.ParamB, f.ParamC)
	return d, f.Verify()
}

// encodeParams fills the three parameter limbs. With a registered schema
// the mapping is strict; without one, up to three params are taken in
// sorted key order and typed generically.
func (c *Codec) encodeParams(verbID, objectID uint32, params map[string]any) (uint32, uint32, uint32, error) {
	if len(params) == 0 {
		return 0, 0, 0, nil
	}

	specs, ok := c.schemaByID(verbID, objectID)
	if !ok {
		return encodeGeneric(params)
	}

	declared := make(map[string]struct{}, len(specs))
	var slots [MaxParams]uint32
	for i, spec := range specs {
		declared[spec.Name] = struct{}{}
		val, present := params[spec.Name]
		if !present {
			continue
		}
		enc, err := encodeTyped(spec, val)
		if err != nil {
			return 0, 0, 0, err
		}
		slots[i] = enc
	}
	for name := range params {
		if _, ok := declared[name]; !ok {
			return 0, 0, 0, fmt.Errorf("%w: param %q not declared for this verb/object pair", ErrSchema, name)
		}
	}
	return slots[0], slots[1], slots[2], nil
}

func encodeGeneric(params map[string]any) (uint32, uint32, uint32, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > MaxParams {
		keys = keys[:MaxParams]
	}

	var slots [MaxParams]uint32
	for i, k := range keys {
		switch v := params[k].(type) {
		case bool:
			if v {
				slots[i] = 1
			}
		case int:
			slots[i] = uint32(v)
		case int64:
			slots[i] = uint32(v)
		case uint32:
			slots[i] = v
		case float64:
			if v == math.Trunc(v) && v >= 0 && v <= math.MaxUint32 {
				slots[i] = uint32(v)
			} else {
				slots[i] = uint32(int64(math.Round(v * 1_000_000)))
			}
		case string:
			slots[i] = TokenID(v)
		default:
			slots[i] = TokenID(fmt.Sprint(v))
		}
	}
	return slots[0], slots[1], slots[2], nil
}

func encodeTyped(spec ParamSpec, val any) (uint32, error) {
	switch spec.Kind {
	case KindBool:
		switch v := val.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		case int:
			if v != 0 {
				return 1, nil
			}
			return 0, nil
		case float64:
			if v != 0 {
				return 1, nil
			}
			return 0, nil
		case string:
			switch v {
			case "1", "true", "yes":
				return 1, nil
			}
			return 0, nil
		default:
			return 0, fmt.Errorf("%w: param %q: cannot encode %T as bool", ErrSchema, spec.Name, val)
		}

	case KindID, KindAddress:
		switch v := val.(type) {
		case string:
			return TokenID(v), nil
		case uint32:
			return v, nil
		case int:
			if v < 0 || int64(v) > math.MaxUint32 {
				return 0, fmt.Errorf("%w: param %q: id %d outside uint32", ErrRange, spec.Name, v)
			}
			return uint32(v), nil
		default:
			return 0, fmt.Errorf("%w: param %q: cannot encode %T as %s", ErrSchema, spec.Name, val, spec.Kind)
		}

	case KindInt, KindTimestamp, KindFloat, KindPercent, KindAmount:
		num, err := numeric(val)
		if err != nil {
			return 0, fmt.Errorf("%w: param %q: %v", ErrSchema, spec.Name, err)
		}
		if spec.Min != nil && num < *spec.Min {
			return 0, fmt.Errorf("%w: param %q: %v below min %v", ErrSchema, spec.Name, num, *spec.Min)
		}
		if spec.Max != nil && num > *spec.Max {
			return 0, fmt.Errorf("%w: param %q: %v above max %v", ErrSchema, spec.Name, num, *spec.Max)
		}
		scaled := math.Round(num * float64(spec.EffectiveScale()))
		if scaled < 0 || scaled > math.MaxUint32 {
			return 0, fmt.Errorf("%w: param %q: scaled value %.0f does not fit uint32", ErrRange, spec.Name, scaled)
		}
		return uint32(scaled), nil

	default:
		return 0, fmt.Errorf("%w: unknown param kind %q", ErrSchema, spec.Kind)
	}
}

func numeric(val any) (float64, error) {
	switch v := val.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as a number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot encode %T as a number", val)
	}
}

// decodeParams rescales the parameter limbs through the schema when one is
// registered; otherwise the raw limbs are exposed as-is.
func (c *Codec) decodeParams(verbID, objectID, a, b, pc uint32) (map[string]any, bool) {
	specs, ok := c.schemaByID(verbID, objectID)
	if !ok {
		return map[string]any{"paramA": a, "paramB": b, "paramC": pc}, false
	}

	slots := [MaxParams]uint32{a, b, pc}
	out := make(map[string]any, len(specs))
	for i, spec := range specs {
		n := slots[i]
		switch spec.Kind {
		case KindInt, KindTimestamp:
			out[spec.Name] = int64(n)
		case KindBool:
			out[spec.Name] = n&1 == 1
		case KindFloat, KindPercent, KindAmount:
			out[spec.Name] = float64(n) / float64(spec.EffectiveScale())
		case KindID, KindAddress:
			// Token hashes are one-way; surface the raw id.
			out[spec.Name] = "ID#" + strconv.FormatUint(uint64(n), 10)
		default:
			out[spec.Name] = n
		}
	}
	return out, true
}
