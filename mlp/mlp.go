// Package mlp implements the feed-forward generator and
// critic networks used for adversarial training in latent
// space.
package mlp

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// ErrBadArch is returned for malformed architecture
// strings.
var ErrBadArch = errors.New("bad architecture string")

// InitStddev is the standard deviation of the initial
// weights.
const InitStddev = 0.02

// LeakySlope is the negative slope of the critic's
// activation.
const LeakySlope = 0.2

// ParseArch parses a dash-separated list of hidden layer
// widths, such as "300-300".
// An empty string means no hidden layers.
func ParseArch(arch string) ([]int, error) {
	if arch == "" {
		return nil, nil
	}
	var res []int
	for _, part := range strings.Split(arch, "-") {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrBadArch, arch)
		}
		res = append(res, n)
	}
	return res, nil
}

// LeakyReLU is a layer computing max(x, 0) + Slope*min(x, 0).
type LeakyReLU struct {
	Slope float64
}

// Apply applies the layer to a packed batch.
func (l *LeakyReLU) Apply(in anydiff.Res, n int) anydiff.Res {
	pos := anydiff.ClipPos(in)
	neg := anydiff.Sub(in, pos)
	c := in.Output().Creator()
	return anydiff.Add(pos, anydiff.Scale(neg, c.MakeNumeric(l.Slope)))
}

// Network is an anynet.Net of fully-connected layers with
// an activation layer between every pair of them.
// The last layer is linear.
type Network struct {
	Net anynet.Net
}

// New creates a network mapping inSize inputs to outSize
// outputs through the hidden widths in arch.
func New(c anyvec.Creator, rng *rand.Rand, inSize, outSize int, arch string,
	act anynet.Layer) (*Network, error) {
	hidden, err := ParseArch(arch)
	if err != nil {
		return nil, err
	}
	if inSize <= 0 || outSize <= 0 {
		return nil, fmt.Errorf("%w: sizes %d -> %d", ErrBadArch, inSize, outSize)
	}
	res := &Network{}
	sizes := append(append([]int{inSize}, hidden...), outSize)
	for i := 1; i < len(sizes); i++ {
		if i > 1 {
			res.Net = append(res.Net, act)
		}
		layer := anynet.NewFC(c, sizes[i-1], sizes[i])
		initNormal(layer.Weights.Vector, rng, InitStddev)
		layer.Biases.Vector.Scale(c.MakeNumeric(0))
		res.Net = append(res.Net, layer)
	}
	return res, nil
}

// NewGenerator creates a generator mapping noise vectors
// of size zSize to latent codes of size codeSize.
func NewGenerator(c anyvec.Creator, rng *rand.Rand, zSize, codeSize int,
	arch string) (*Network, error) {
	return New(c, rng, zSize, codeSize, arch, anynet.ReLU)
}

// NewCritic creates a critic mapping latent codes to one
// realness score each.
func NewCritic(c anyvec.Creator, rng *rand.Rand, codeSize int,
	arch string) (*Network, error) {
	return New(c, rng, codeSize, 1, arch, &LeakyReLU{Slope: LeakySlope})
}

// InSize returns the input width.
func (n *Network) InSize() int {
	return n.Net[0].(*anynet.FC).InCount
}

// OutSize returns the output width.
func (n *Network) OutSize() int {
	return n.Net[len(n.Net)-1].(*anynet.FC).OutCount
}

// Apply runs the network on a packed batch of n inputs.
func (n *Network) Apply(in anydiff.Res, batch int) anydiff.Res {
	if in.Output().Len() != batch*n.InSize() {
		panic(fmt.Sprintf("input size mismatch: got %d, want %d*%d",
			in.Output().Len(), batch, n.InSize()))
	}
	return n.Net.Apply(in, batch)
}

// Score applies the network and, if reduceMean is set,
// averages the outputs into a single component.
func (n *Network) Score(in anydiff.Res, batch int, reduceMean bool) anydiff.Res {
	out := n.Apply(in, batch)
	if !reduceMean {
		return out
	}
	return Mean(out)
}

// Parameters returns every weight and bias.
func (n *Network) Parameters() []*anydiff.Var {
	return n.Net.Parameters()
}

// Mean averages the components of in.
func Mean(in anydiff.Res) anydiff.Res {
	c := in.Output().Creator()
	return anydiff.Scale(anydiff.Sum(in), c.MakeNumeric(1/float64(in.Output().Len())))
}

func initNormal(v anyvec.Vector, rng *rand.Rand, stddev float64) {
	anyvec.Rand(v, anyvec.Normal, rng)
	v.Scale(v.Creator().MakeNumeric(stddev))
}
