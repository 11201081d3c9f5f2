// Package simrender is an in-process, pure-Go implementation of the
// hostaudio.Context contract. It renders the node graph in software,
// sample by sample, instead of talking to a real audio device — used by
// tests and by any offline render path. hostaudio/realtime wraps the same
// node graph with an oto/v3 device on top.
//
// The rendering model is pull-based: each node recomputes its output for a
// requested block by pulling from whatever is connected into it. This
// mirrors the "graph of small renderers" shape of the teacher's
// cbegin-mmlfm-go/internal/audio package, generalized here from a fixed
// generator chain to an arbitrary connect/disconnect graph.
package simrender

import (
	"github.com/overtone-labs/corestage/hostaudio"
)

type frame = [2]float32

// renderCtx carries the absolute context time of a block's first sample,
// threaded through every renderable's render call so time-based nodes
// (buffer sources, delays) can compute absolute sample positions.
type renderCtx struct {
	startTime  float64
	sampleRate int
}

func (rc renderCtx) timeAt(i int) float64 {
	return rc.startTime + float64(i)/float64(rc.sampleRate)
}

// renderable is implemented by every concrete node; it is unexported
// because rendering is not part of the public node-capability surface
// (spec.md §9: nodes are "connect/disconnect plus parameter handles" only).
type renderable interface {
	render(out []frame, rc renderCtx)
}

// base implements the wiring half of every node: Connect/Disconnect thread
// a renderable pointer (self) into whatever downstream node it feeds.
// Concrete types embed base and set self to themselves right after
// construction, since Go has no way for an embedded type to learn its
// embedder's identity on its own.
type base struct {
	self    renderable
	inputs  []renderable
	outputs []hostaudio.Node
}

func (b *base) Connect(dst hostaudio.Node) {
	if s, ok := dst.(interface{ addInput(renderable) }); ok {
		s.addInput(b.self)
	}
	b.outputs = append(b.outputs, dst)
}

func (b *base) addInput(r renderable) {
	b.inputs = append(b.inputs, r)
}

func (b *base) Disconnect(dst hostaudio.Node) {
	for i, o := range b.outputs {
		if o == dst {
			b.outputs = append(b.outputs[:i], b.outputs[i+1:]...)
			break
		}
	}
	if s, ok := dst.(interface{ removeInput(renderable) }); ok {
		s.removeInput(b.self)
	}
}

func (b *base) removeInput(r renderable) {
	for i, in := range b.inputs {
		if in == r {
			b.inputs = append(b.inputs[:i], b.inputs[i+1:]...)
			break
		}
	}
}

func (b *base) DisconnectAll() {
	for _, o := range append([]hostaudio.Node(nil), b.outputs...) {
		b.Disconnect(o)
	}
}

// sumInputs mixes every connected input into a freshly allocated block of
// n frames, the common first step of nearly every node's render method.
func (b *base) sumInputs(n int, rc renderCtx) []frame {
	out := make([]frame, n)
	scratch := make([]frame, n)
	for _, in := range b.inputs {
		for i := range scratch {
			scratch[i] = frame{}
		}
		in.render(scratch, rc)
		for i := range out {
			out[i][0] += scratch[i][0]
			out[i][1] += scratch[i][1]
		}
	}
	return out
}
