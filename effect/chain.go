package effect

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/overtone-labs/corestage/hostaudio"
)

// Chain is an ordered list of effects wired input -> output in series, per
// spec.md §3/§4.4. When empty, input connects straight to output; adding,
// removing or reordering rewires the internal edges atomically so the
// chain's external output terminal is never disconnected.
type Chain struct {
	ctx    hostaudio.Context
	input  hostaudio.Gain
	output hostaudio.Gain
	level  hostaudio.Gain
	chain  []Effect
	nextID int
}

// NewChain builds an empty chain between two freshly created gain nodes.
func NewChain(ctx hostaudio.Context) *Chain {
	c := &Chain{
		ctx:    ctx,
		input:  ctx.CreateGain(),
		output: ctx.CreateGain(),
		level:  ctx.CreateGain(),
	}
	c.output.Connect(c.level)
	c.rewire()
	return c
}

func (c *Chain) Input() hostaudio.Node  { return c.input }
func (c *Chain) Output() hostaudio.Node { return c.level }

// SetChainLevel applies the post-chain gain, per spec.md's
// `setChainLevel(amount)`.
func (c *Chain) SetChainLevel(amount float64) { c.level.SetGain(amount) }

// CreateEffect constructs a new effect of the given type and appends it,
// per spec.md's `createEffect(type)`.
func (c *Chain) CreateEffect(typ Type) (Effect, error) {
	id := fmt.Sprintf("%s-%d", typ, c.nextID)
	c.nextID++

	var e Effect
	switch typ {
	case TypeReverb:
		e = NewReverb(c.ctx, id)
	case TypeDelay:
		e = NewDelay(c.ctx, id)
	case TypeEQ:
		e = NewEQ(c.ctx, id, nil)
	case TypeCompressor:
		e = NewCompressor(c.ctx, id)
	case TypeDistortion:
		e = NewDistortion(c.ctx, id)
	case TypeFilter:
		e = NewFilter(c.ctx, id)
	default:
		return nil, fmt.Errorf("effect: unknown type %q", typ)
	}
	c.AddEffect(e, -1)
	return e, nil
}

// AddEffect inserts e at index (or appends, if index < 0 or beyond the
// current length), then rewires the chain.
func (c *Chain) AddEffect(e Effect, index int) {
	if index < 0 || index > len(c.chain) {
		index = len(c.chain)
	}
	c.chain = append(c.chain, nil)
	copy(c.chain[index+1:], c.chain[index:])
	c.chain[index] = e
	c.rewire()
}

// RemoveEffect removes and disposes the effect with the given id, a no-op
// if unknown.
func (c *Chain) RemoveEffect(id string) {
	for i, e := range c.chain {
		if e.ID() == id {
			c.chain = append(c.chain[:i], c.chain[i+1:]...)
			c.rewire()
			e.Dispose()
			return
		}
	}
}

// MoveEffect relocates the effect with the given id to newIndex, clamped
// to the chain's bounds.
func (c *Chain) MoveEffect(id string, newIndex int) {
	idx := -1
	for i, e := range c.chain {
		if e.ID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	e := c.chain[idx]
	c.chain = append(c.chain[:idx], c.chain[idx+1:]...)
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(c.chain) {
		newIndex = len(c.chain)
	}
	c.chain = append(c.chain, nil)
	copy(c.chain[newIndex+1:], c.chain[newIndex:])
	c.chain[newIndex] = e
	c.rewire()
}

// Effects returns the chain in order.
func (c *Chain) Effects() []Effect {
	out := make([]Effect, len(c.chain))
	copy(out, c.chain)
	return out
}

// rewire disconnects input/output from whatever they fed directly (the
// empty-chain passthrough edge) and from every effect's terminals, then
// reconnects them according to the current chain order. The external
// input/output node identities never change, only their internal edges,
// satisfying spec.md's "must not disconnect the external output terminal"
// invariant — callers holding c.Output() keep a valid reference throughout.
func (c *Chain) rewire() {
	c.input.DisconnectAll()
	for _, e := range c.chain {
		e.Output().DisconnectAll()
	}

	if len(c.chain) == 0 {
		c.input.Connect(c.output)
		return
	}
	c.input.Connect(c.chain[0].Input())
	for i := 0; i < len(c.chain)-1; i++ {
		c.chain[i].Output().Connect(c.chain[i+1].Input())
	}
	c.chain[len(c.chain)-1].Output().Connect(c.output)
}

// State is the typed serialization of one chain's enabled/bypass flags and
// parameter values, per spec.md's `setState`/`getState`.
type State struct {
	Level   float64        `json:"level"`
	Effects []EffectState  `json:"effects"`
}

type EffectState struct {
	Type    Type               `json:"type"`
	Enabled bool               `json:"enabled"`
	Params  map[string]float64 `json:"params"`
}

// GetState snapshots the chain.
func (c *Chain) GetState() State {
	s := State{Level: c.level.Gain()}
	for _, e := range c.chain {
		params := make(map[string]float64)
		for _, spec := range e.Parameters() {
			params[spec.ID] = e.GetParameter(spec.ID)
		}
		s.Effects = append(s.Effects, EffectState{Type: e.Type(), Enabled: e.Enabled(), Params: params})
	}
	return s
}

// SetState recreates every effect in order from a snapshot, disposing
// whatever was previously in the chain, per spec.md's "on restore, effects
// are recreated in order."
func (c *Chain) SetState(s State) error {
	for _, e := range c.chain {
		e.Dispose()
	}
	c.chain = nil
	c.rewire()
	c.level.SetGain(s.Level)

	for _, es := range s.Effects {
		e, err := c.CreateEffect(es.Type)
		if err != nil {
			return fmt.Errorf("effect: restore chain: %w", err)
		}
		e.SetEnabled(es.Enabled)
		for id, v := range es.Params {
			_ = e.SetParameter(id, v)
		}
	}
	return nil
}

// SerializeState encodes a State as JSON via sjson's path-set API rather
// than struct-tag marshaling, matching how the teacher's pack (tidwall
// gjson/sjson) is used elsewhere in this module for schema-light documents.
func SerializeState(s State) (string, error) {
	doc := "{}"
	var err error
	doc, err = sjson.Set(doc, "level", s.Level)
	if err != nil {
		return "", fmt.Errorf("effect: serialize: %w", err)
	}
	for i, es := range s.Effects {
		prefix := fmt.Sprintf("effects.%d.", i)
		doc, err = sjson.Set(doc, prefix+"type", string(es.Type))
		if err != nil {
			return "", fmt.Errorf("effect: serialize: %w", err)
		}
		doc, err = sjson.Set(doc, prefix+"enabled", es.Enabled)
		if err != nil {
			return "", fmt.Errorf("effect: serialize: %w", err)
		}
		for id, v := range es.Params {
			doc, err = sjson.Set(doc, prefix+"params."+id, v)
			if err != nil {
				return "", fmt.Errorf("effect: serialize: %w", err)
			}
		}
	}
	return doc, nil
}

// DeserializeState decodes a document produced by SerializeState, reading
// fields by gjson path rather than unmarshaling into a struct.
func DeserializeState(doc string) (State, error) {
	if !gjson.Valid(doc) {
		return State{}, fmt.Errorf("effect: deserialize: invalid json")
	}
	root := gjson.Parse(doc)
	s := State{Level: root.Get("level").Float()}
	for _, eff := range root.Get("effects").Array() {
		params := make(map[string]float64)
		eff.Get("params").ForEach(func(key, value gjson.Result) bool {
			params[key.String()] = value.Float()
			return true
		})
		s.Effects = append(s.Effects, EffectState{
			Type:    Type(eff.Get("type").String()),
			Enabled: eff.Get("enabled").Bool(),
			Params:  params,
		})
	}
	return s, nil
}
