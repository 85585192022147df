package train

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

// SGD is plain gradient descent with the gradient clipped
// component-wise into [-Clip, Clip].
// A non-positive Clip disables clipping.
type SGD struct {
	Rate float64
	Clip float64
}

// Step updates the variables in g.
// The gradient vectors are modified in place.
func (s *SGD) Step(g anydiff.Grad) {
	if s.Clip > 0 {
		for _, vec := range g {
			c := vec.Creator()
			anyvec.ClipRange(vec, c.MakeNumeric(-s.Clip), c.MakeNumeric(s.Clip))
		}
	}
	g.ScaleFloat64(-s.Rate)
	g.AddToVars()
}

// Adam applies anysgd.Adam steps with a fixed rate.
type Adam struct {
	Rate        float64
	Transformer *anysgd.Adam
}

// NewAdam creates an Adam optimizer with the given rate
// and first-moment decay for the variables in vars.
// Every gradient passed to Step must cover exactly vars.
func NewAdam(rate, beta1 float64, vars []*anydiff.Var) *Adam {
	return &Adam{
		Rate: rate,
		Transformer: &anysgd.Adam{
			DecayRate1: beta1,
			DecayRate2: 0.999,
			Vars:       vars,
		},
	}
}

// Step updates the variables in g.
func (a *Adam) Step(g anydiff.Grad) {
	step := a.Transformer.Transform(g)
	step.ScaleFloat64(-a.Rate)
	step.AddToVars()
}

// MarshalBinary saves the moment estimates.
func (a *Adam) MarshalBinary() ([]byte, error) {
	return a.Transformer.MarshalBinary()
}

// UnmarshalBinary restores moment estimates saved by
// MarshalBinary for the same variables.
func (a *Adam) UnmarshalBinary(data []byte) error {
	return a.Transformer.UnmarshalBinary(data)
}

// subGrad returns the part of g belonging to vars.
func subGrad(g anydiff.Grad, vars []*anydiff.Var) anydiff.Grad {
	res := anydiff.Grad{}
	for _, v := range vars {
		if vec, ok := g[v]; ok {
			res[v] = vec
		}
	}
	return res
}
