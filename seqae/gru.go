package seqae

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// GRU is a gated recurrent cell whose gates also see a
// per-sequence conditioning vector (the latent code).
type GRU struct {
	InZ, InR, InH       *anynet.FC
	CondZ, CondR, CondH *anynet.FC
	HidZ, HidR, HidH    *anynet.FC
}

// NewGRU creates a GRU with inSize inputs, condSize
// conditioning inputs, and hidden state size hidden.
func NewGRU(c anyvec.Creator, inSize, condSize, hidden int) *GRU {
	return &GRU{
		InZ:   anynet.NewFC(c, inSize, hidden),
		InR:   anynet.NewFC(c, inSize, hidden),
		InH:   anynet.NewFC(c, inSize, hidden),
		CondZ: anynet.NewFC(c, condSize, hidden),
		CondR: anynet.NewFC(c, condSize, hidden),
		CondH: anynet.NewFC(c, condSize, hidden),
		HidZ:  anynet.NewFC(c, hidden, hidden),
		HidR:  anynet.NewFC(c, hidden, hidden),
		HidH:  anynet.NewFC(c, hidden, hidden),
	}
}

// A Condition is the conditioning vector projected into
// each gate, computed once per batch.
type Condition struct {
	Z, R, H anydiff.Res
}

// Condition projects a packed batch of n conditioning
// vectors.
func (g *GRU) Condition(cond anydiff.Res, n int) *Condition {
	return &Condition{
		Z: g.CondZ.Apply(cond, n),
		R: g.CondR.Apply(cond, n),
		H: g.CondH.Apply(cond, n),
	}
}

// Step computes the next state from an input batch, the
// batch's condition, and the current state.
//
// The state h is used several times, so it should be a
// variable or a pooled result.
func (g *GRU) Step(in anydiff.Res, cond *Condition, h anydiff.Res, n int) anydiff.Res {
	z := anydiff.Sigmoid(sum3(g.InZ.Apply(in, n), cond.Z, g.HidZ.Apply(h, n)))
	r := anydiff.Sigmoid(sum3(g.InR.Apply(in, n), cond.R, g.HidR.Apply(h, n)))
	cand := anydiff.Tanh(sum3(g.InH.Apply(in, n), cond.H,
		g.HidH.Apply(anydiff.Mul(r, h), n)))

	// h + z*(cand - h)
	return anydiff.Add(h, anydiff.Mul(z, anydiff.Sub(cand, h)))
}

// Parameters returns the weights of every gate.
func (g *GRU) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, layer := range g.layers() {
		res = append(res, layer.Parameters()...)
	}
	return res
}

func (g *GRU) layers() []*anynet.FC {
	return []*anynet.FC{
		g.InZ, g.InR, g.InH,
		g.CondZ, g.CondR, g.CondH,
		g.HidZ, g.HidR, g.HidH,
	}
}

func sum3(a, b, c anydiff.Res) anydiff.Res {
	return anydiff.Add(anydiff.Add(a, b), c)
}
