package nlc9

import (
	"fmt"
	"strings"
)

// Kind names the wire typing of one parameter slot.
type Kind string

const (
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindBool      Kind = "bool"
	KindID        Kind = "id"
	KindPercent   Kind = "percent"
	KindAmount    Kind = "amount"
	KindAddress   Kind = "address"
	KindTimestamp Kind = "timestamp"
)

// MaxParams is the number of parameter limbs per frame.
const MaxParams = 3

// ParamSpec types one parameter slot of a (verb, object) pair. Fractional
// kinds ride as fixed-point integers: the value is multiplied by Scale on
// encode and divided on decode.
type ParamSpec struct {
	Name  string   `json:"name" yaml:"name"`
	Kind  Kind     `json:"kind" yaml:"kind"`
	Scale uint32   `json:"scale,omitempty" yaml:"scale,omitempty"`
	Min   *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max   *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// EffectiveScale resolves the scale factor, applying per-kind defaults.
func (p ParamSpec) EffectiveScale() uint32 {
	if p.Scale > 0 {
		return p.Scale
	}
	switch p.Kind {
	case KindFloat, KindAmount:
		return 1_000_000
	case KindPercent:
		return 10_000
	default:
		return 1
	}
}

func (p ParamSpec) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: param name must be non-empty", ErrSchema)
	}
	switch p.Kind {
	case KindInt, KindFloat, KindBool, KindID, KindPercent, KindAmount, KindAddress, KindTimestamp:
		return nil
	default:
		return fmt.Errorf("%w: unknown param kind %q", ErrSchema, p.Kind)
	}
}

type schemaKey struct {
	verb   uint32
	object uint32
}

// RegisterSchema declares the ordered parameter layout for a (verb, object)
// pair. At most three parameters are accepted; later registrations replace
// earlier ones.
func (c *Codec) RegisterSchema(verb, object string, params []ParamSpec) error {
	if len(params) > MaxParams {
		return fmt.Errorf("%w: at most %d params supported, got %d", ErrSchema, MaxParams, len(params))
	}
	for _, p := range params {
		if err := p.validate(); err != nil {
			return err
		}
	}
	key := schemaKey{c.Registry.VerbID(verb), c.Registry.ObjectID(object)}
	specs := make([]ParamSpec, len(params))
	copy(specs, params)
	c.mu.Lock()
	c.schemas[key] = specs
	c.mu.Unlock()
	return nil
}

// Schema returns the registered parameter layout for a (verb, object) pair.
func (c *Codec) Schema(verb, object string) ([]ParamSpec, bool) {
	return c.schemaByID(c.Registry.VerbID(verb), c.Registry.ObjectID(object))
}

func (c *Codec) schemaByID(verbID, objectID uint32) ([]ParamSpec, bool) {
	c.mu.RLock()
	specs, ok := c.schemas[schemaKey{verbID, objectID}]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := make([]ParamSpec, len(specs))
	copy(out, specs)
	return out, true
}
