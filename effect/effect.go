// Package effect implements the DSP units wired into a track or master
// EffectChain, per spec.md §4.4. Each effect is built from hostaudio node
// primitives (gain/biquad/delay/waveshaper/reverb), composed the way
// the teacher's internal/effects package composes raw DSP stages — reverb,
// delay, EQ, compressor, distortion and filter all reappear here, but as
// node graphs wired against a hostaudio.Context instead of bare Process(l,
// r) functions, so they can be dropped into the track's node graph.
package effect

import (
	"fmt"
	"math"

	"github.com/overtone-labs/corestage/hostaudio"
)

// Curve describes how a parameter's UI-facing value maps to its
// underlying range.
type Curve int

const (
	Linear Curve = iota
	Logarithmic
)

// ParameterSpec describes one named, clamped control on an Effect.
type ParameterSpec struct {
	ID      string
	Name    string
	Min     float64
	Max     float64
	Default float64
	Curve   Curve
	Unit    string
}

func (p ParameterSpec) clamp(v float64) float64 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// Type identifies an effect's DSP variant.
type Type string

const (
	TypeReverb      Type = "reverb"
	TypeDelay       Type = "delay"
	TypeEQ          Type = "eq"
	TypeCompressor  Type = "compressor"
	TypeDistortion  Type = "distortion"
	TypeFilter      Type = "filter"
)

// Effect is the capability set every DSP unit exposes, per spec.md §3/§4.4:
// setParameter, enable/bypass, connect input/output, dispose.
type Effect interface {
	ID() string
	Type() Type
	Parameters() []ParameterSpec
	SetParameter(id string, v float64) error
	GetParameter(id string) float64
	SetEnabled(enabled bool)
	Enabled() bool
	SetMix(wet, dry float64)
	Input() hostaudio.Node
	Output() hostaudio.Node
	Dispose()
}

// base implements the wet/dry mixing and bypass plumbing shared by every
// concrete effect: input feeds both the dry path and the variant-specific
// wet path in parallel; both sum into output. Disabling routes input
// straight to output at unity (bypass), per spec.md §4.4.
type base struct {
	id      string
	typ     Type
	ctx     hostaudio.Context
	params  map[string]*ParameterSpec
	values  map[string]float64
	enabled bool

	input    hostaudio.Gain // entry point; always connected to both wet path and dryGain
	output   hostaudio.Gain // sum of wetGain and dryGain, or of bypassGain when disabled
	dryGain  hostaudio.Gain
	wetGain  hostaudio.Gain
	bypass   hostaudio.Gain
	wetEntry hostaudio.Node // first node of the variant-specific wet path
}

func newBase(ctx hostaudio.Context, id string, typ Type, specs []ParameterSpec, wetEntry hostaudio.Node) *base {
	b := &base{
		id:      id,
		typ:     typ,
		ctx:     ctx,
		params:  make(map[string]*ParameterSpec, len(specs)),
		values:  make(map[string]float64, len(specs)),
		enabled: true,
		input:   ctx.CreateGain(),
		output:  ctx.CreateGain(),
		dryGain: ctx.CreateGain(),
		wetGain: ctx.CreateGain(),
		bypass:  ctx.CreateGain(),
	}
	for i := range specs {
		spec := specs[i]
		b.params[spec.ID] = &spec
		b.values[spec.ID] = spec.Default
	}
	b.dryGain.SetGain(0)
	b.wetGain.SetGain(1)
	b.bypass.SetGain(0)
	b.wireEnabled(wetEntry)
	return b
}

// wireEnabled connects input through the wet/dry sum when enabled, per the
// enabled flag at construction time; SetEnabled re-runs this to flip the
// active path.
func (b *base) wireEnabled(wetEntry hostaudio.Node) {
	b.wetEntry = wetEntry
	b.input.Connect(b.dryGain)
	b.input.Connect(wetEntry)
	b.dryGain.Connect(b.output)
	b.wetGain.Connect(b.output)
	b.input.Connect(b.bypass)
	b.bypass.Connect(b.output)
	b.applyEnabled()
}

func (b *base) applyEnabled() {
	if b.enabled {
		b.dryGain.SetGain(1 - b.values["mix"])
		b.wetGain.SetGain(b.values["mix"])
		b.bypass.SetGain(0)
	} else {
		b.dryGain.SetGain(0)
		b.wetGain.SetGain(0)
		b.bypass.SetGain(1)
	}
}

func (b *base) ID() string   { return b.id }
func (b *base) Type() Type   { return b.typ }
func (b *base) Enabled() bool { return b.enabled }

func (b *base) Parameters() []ParameterSpec {
	out := make([]ParameterSpec, 0, len(b.params))
	for _, p := range b.params {
		out = append(out, *p)
	}
	return out
}

func (b *base) GetParameter(id string) float64 { return b.values[id] }

func (b *base) setParameterRaw(id string, v float64) error {
	spec, ok := b.params[id]
	if !ok {
		return fmt.Errorf("effect: unknown parameter %q on %s", id, b.typ)
	}
	b.values[id] = spec.clamp(v)
	if id == "mix" {
		b.applyEnabled()
	}
	return nil
}

func (b *base) SetEnabled(enabled bool) {
	b.enabled = enabled
	b.applyEnabled()
}

func (b *base) SetMix(wet, dry float64) {
	total := wet + dry
	if total <= 0 {
		b.values["mix"] = 0
	} else {
		b.values["mix"] = wet / total
	}
	b.applyEnabled()
}

func (b *base) Input() hostaudio.Node  { return b.input }
func (b *base) Output() hostaudio.Node { return b.output }

func (b *base) Dispose() {
	b.input.DisconnectAll()
	b.output.DisconnectAll()
	b.dryGain.DisconnectAll()
	b.wetGain.DisconnectAll()
	b.bypass.DisconnectAll()
}

// mixParameter is included in every effect's parameter list so SetMix and
// SetParameter("mix", v) are interchangeable.
var mixParameter = ParameterSpec{ID: "mix", Name: "Mix", Min: 0, Max: 1, Default: 0.35, Curve: Linear, Unit: "ratio"}

func dbToLinear(db float64) float64 { return math.Pow(10, db/20) }
