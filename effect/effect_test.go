package effect

import (
	"testing"

	"github.com/overtone-labs/corestage/hostaudio/simrender"
)

func newTestContext() *simrender.Context {
	return simrender.New(48, func() float64 { return 0 })
}

func TestSetParameterClampsToRange(t *testing.T) {
	ctx := newTestContext()
	f := NewFilter(ctx, "f0")

	if err := f.SetParameter("frequency", 999999); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	if got := f.GetParameter("frequency"); got != 20000 {
		t.Fatalf("frequency clamp = %v, want 20000", got)
	}

	if err := f.SetParameter("frequency", -5); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	if got := f.GetParameter("frequency"); got != 20 {
		t.Fatalf("frequency clamp = %v, want 20", got)
	}
}

func TestSetParameterUnknownIDErrors(t *testing.T) {
	ctx := newTestContext()
	f := NewFilter(ctx, "f0")
	if err := f.SetParameter("doesNotExist", 1); err == nil {
		t.Fatal("expected an error for an unknown parameter id")
	}
}

func TestDisableRoutesInputToOutputAtUnity(t *testing.T) {
	ctx := newTestContext()
	f := NewFilter(ctx, "f0")
	f.SetEnabled(false)
	if f.Enabled() {
		t.Fatal("Enabled() should be false after SetEnabled(false)")
	}
	// bypass gain should be fully open and wet/dry both muted; that's
	// internal state, so just exercise the toggle round-trip here.
	f.SetEnabled(true)
	if !f.Enabled() {
		t.Fatal("Enabled() should be true after SetEnabled(true)")
	}
}

func TestChainRewirePreservesOutputIdentity(t *testing.T) {
	ctx := newTestContext()
	chain := NewChain(ctx)
	output := chain.Output()

	e1, err := chain.CreateEffect(TypeFilter)
	if err != nil {
		t.Fatalf("CreateEffect: %v", err)
	}
	if _, err := chain.CreateEffect(TypeDistortion); err != nil {
		t.Fatalf("CreateEffect: %v", err)
	}

	if chain.Output() != output {
		t.Fatal("Output() identity changed after adding effects")
	}

	chain.RemoveEffect(e1.ID())
	if chain.Output() != output {
		t.Fatal("Output() identity changed after removing an effect")
	}
	if len(chain.Effects()) != 1 {
		t.Fatalf("expected 1 effect remaining, got %d", len(chain.Effects()))
	}
}

func TestChainMoveEffectReorders(t *testing.T) {
	ctx := newTestContext()
	chain := NewChain(ctx)

	a, _ := chain.CreateEffect(TypeFilter)
	b, _ := chain.CreateEffect(TypeDistortion)
	_ = b

	chain.MoveEffect(a.ID(), 1)
	effects := chain.Effects()
	if effects[0].ID() == a.ID() {
		t.Fatalf("expected %s to move to the end, order was %v", a.ID(), idsOf(effects))
	}
}

func idsOf(effects []Effect) []string {
	ids := make([]string, len(effects))
	for i, e := range effects {
		ids[i] = e.ID()
	}
	return ids
}

func TestChainStateRoundTripsThroughJSON(t *testing.T) {
	ctx := newTestContext()
	chain := NewChain(ctx)
	e, err := chain.CreateEffect(TypeEQ)
	if err != nil {
		t.Fatalf("CreateEffect: %v", err)
	}
	if err := e.SetParameter("band0", 6); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	e.SetEnabled(false)
	chain.SetChainLevel(0.75)

	snapshot := chain.GetState()
	if snapshot.Level != 0.75 {
		t.Fatalf("GetState().Level = %v, want 0.75", snapshot.Level)
	}
	doc, err := SerializeState(snapshot)
	if err != nil {
		t.Fatalf("SerializeState: %v", err)
	}

	restored, err := DeserializeState(doc)
	if err != nil {
		t.Fatalf("DeserializeState: %v", err)
	}
	if restored.Level != 0.75 {
		t.Fatalf("Level = %v, want 0.75", restored.Level)
	}
	if len(restored.Effects) != 1 {
		t.Fatalf("expected 1 effect in restored state, got %d", len(restored.Effects))
	}
	if restored.Effects[0].Type != TypeEQ {
		t.Fatalf("Type = %v, want %v", restored.Effects[0].Type, TypeEQ)
	}
	if restored.Effects[0].Enabled {
		t.Fatal("Enabled should have round-tripped as false")
	}
	if restored.Effects[0].Params["band0"] != 6 {
		t.Fatalf("band0 = %v, want 6", restored.Effects[0].Params["band0"])
	}

	target := NewChain(ctx)
	if err := target.SetState(restored); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	effects := target.Effects()
	if len(effects) != 1 || effects[0].Type() != TypeEQ {
		t.Fatalf("SetState did not recreate the EQ effect: %+v", effects)
	}
	if effects[0].GetParameter("band0") != 6 {
		t.Fatalf("recreated band0 = %v, want 6", effects[0].GetParameter("band0"))
	}
}

func TestCompressorStepReducesGainAboveThreshold(t *testing.T) {
	ctx := newTestContext()
	c := NewCompressor(ctx, "c0")
	if err := c.SetParameter("thresholdDB", -20); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	if err := c.SetParameter("ratio", 4); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}

	var last float32
	for i := 0; i < 2000; i++ {
		last = c.Step(48000, 1)
	}
	if last >= 1 {
		t.Fatalf("expected gain reduction once the envelope settles above threshold, got %v", last)
	}
}
