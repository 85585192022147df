// Package gradroute replaces the gradient that flows
// back through an identity boundary with a constant.
//
// It is used to wire adversarial objectives: the value
// fed into a critic is wrapped with Route, so the critic
// itself back-propagates normally while whatever produced
// its input receives a fixed-sign gradient.
package gradroute

import (
	"errors"
	"fmt"
	"log"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Names of the built-in overrides.
const (
	PassName   = "pass"
	NegateName = "negate"
)

// ErrDuplicate is returned when an override name is
// registered twice.
var ErrDuplicate = errors.New("gradient override already registered")

// An Override decides what gradient reaches the input of
// a routed boundary.
type Override interface {
	// Name identifies the override in a Registry.
	Name() string

	// Downstream computes the gradient for the wrapped
	// input, given the upstream gradient at the boundary.
	// It must not modify upstream.
	Downstream(upstream anyvec.Vector) anyvec.Vector
}

// Constant is an Override which ignores the upstream
// gradient and sends Value in every component.
type Constant struct {
	Label string
	Value float64
}

// Pass returns the override which sends +1 downstream.
func Pass() *Constant {
	return &Constant{Label: PassName, Value: 1}
}

// Negate returns the override which sends -1 downstream.
func Negate() *Constant {
	return &Constant{Label: NegateName, Value: -1}
}

// Name returns c.Label.
func (c *Constant) Name() string {
	return c.Label
}

// Downstream returns a vector shaped like upstream whose
// components are all c.Value.
func (c *Constant) Downstream(upstream anyvec.Vector) anyvec.Vector {
	cr := upstream.Creator()
	res := cr.MakeVector(upstream.Len())
	res.AddScalar(cr.MakeNumeric(c.Value))
	return res
}

type scaled struct {
	Override
	Factor float64
}

// Scaled wraps o so that its downstream gradient is
// multiplied by factor.
// The result keeps the name of o.
func Scaled(o Override, factor float64) Override {
	return &scaled{Override: o, Factor: factor}
}

func (s *scaled) Downstream(upstream anyvec.Vector) anyvec.Vector {
	res := s.Override.Downstream(upstream)
	res.Scale(res.Creator().MakeNumeric(s.Factor))
	return res
}

// A Registry maps override names to overrides.
//
// Registries are plain values: each trainer owns its own,
// so registrations never race with one another.
type Registry struct {
	overrides map[string]Override
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{overrides: map[string]Override{}}
}

// Register adds o to the registry.
// If the name is taken, the existing entry is kept and an
// error wrapping ErrDuplicate is returned.
func (r *Registry) Register(o Override) error {
	if _, ok := r.overrides[o.Name()]; ok {
		return fmt.Errorf("register %q: %w", o.Name(), ErrDuplicate)
	}
	r.overrides[o.Name()] = o
	return nil
}

// Lookup finds an override by name.
func (r *Registry) Lookup(name string) (Override, bool) {
	o, ok := r.overrides[name]
	return o, ok
}

// Len returns the number of registered overrides.
func (r *Registry) Len() int {
	return len(r.overrides)
}

// RegisterDefaults registers the pass and negate
// overrides.
// Duplicate registrations are logged and skipped, so it
// is safe to call more than once.
func RegisterDefaults(r *Registry, logger *log.Logger) {
	for _, o := range []Override{Pass(), Negate()} {
		if err := r.Register(o); err != nil {
			if logger != nil {
				logger.Printf("gradient hooks: %v", err)
			}
		}
	}
}

type routeRes struct {
	In       anydiff.Res
	Override Override
}

// Route wraps in in an identity operation.
// The forward value is in's output; during
// back-propagation, the upstream gradient is discarded
// and o.Downstream is propagated into in instead.
//
// Only the boundary is affected: anything applied to the
// result of Route back-propagates normally down to it.
func Route(in anydiff.Res, o Override) anydiff.Res {
	return &routeRes{In: in, Override: o}
}

func (r *routeRes) Output() anyvec.Vector {
	return r.In.Output()
}

func (r *routeRes) Vars() anydiff.VarSet {
	return r.In.Vars()
}

func (r *routeRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	r.In.Propagate(r.Override.Downstream(u), g)
}
