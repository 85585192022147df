// Package seqae implements a sequence autoencoder which
// maps padded token sequences to fixed-size latent codes
// and back.
//
// The encoder is a stack of LSTMs run over the true length
// of each sentence; its final output is the latent code.
// The decoder is a GRU conditioned on the code at every
// timestep and trained with teacher forcing.
package seqae

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// StartID is the token fed to the decoder before the
// first step.
const StartID = 1

// InitRange bounds the uniform initial weights.
const InitRange = 0.1

// Config describes the shape of an Autoencoder.
type Config struct {
	Vocab  int
	EmSize int
	Hidden int
	MaxLen int

	// NLayers is the depth of the encoder LSTM stack.
	// Zero means one layer.
	NLayers int

	// Dropout is the probability of dropping a component
	// of the embeddings or the latent code during training.
	Dropout float64

	// HiddenInit seeds the decoder state with the latent
	// code instead of zeros.
	HiddenInit bool
}

// Validate checks that every size is positive.
func (c Config) Validate() error {
	if c.Vocab <= StartID || c.EmSize <= 0 || c.Hidden <= 0 || c.MaxLen <= 0 ||
		c.NLayers < 0 || c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("invalid autoencoder config: %+v", c)
	}
	return nil
}

// Noise is Gaussian noise added to latent codes.
type Noise struct {
	Radius float64
	Rand   *rand.Rand
}

// Autoencoder is a sequence-to-sequence autoencoder.
type Autoencoder struct {
	Config

	Creator  anyvec.Creator
	EncEmbed *anynet.FC
	Encoder  anyrnn.Stack
	DecEmbed *anynet.FC
	Decoder  *GRU
	Output   *anynet.FC

	// Dropout is nil when Config.Dropout is zero.
	// It is only enabled while training.
	Dropout *anynet.Dropout
}

// New creates an Autoencoder with weights drawn from rng.
func New(c anyvec.Creator, rng *rand.Rand, cfg Config) (*Autoencoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Autoencoder{
		Config:   cfg,
		Creator:  c,
		EncEmbed: anynet.NewFC(c, cfg.Vocab, cfg.EmSize),
		Encoder:  anyrnn.Stack{anyrnn.NewLSTM(c, cfg.EmSize, cfg.Hidden)},
		DecEmbed: anynet.NewFC(c, cfg.Vocab, cfg.EmSize),
		Decoder:  NewGRU(c, cfg.EmSize, cfg.Hidden, cfg.Hidden),
		Output:   anynet.NewFC(c, cfg.Hidden, cfg.Vocab),
	}
	for i := 1; i < cfg.NLayers; i++ {
		res.Encoder = append(res.Encoder, anyrnn.NewLSTM(c, cfg.Hidden, cfg.Hidden))
	}
	if cfg.Dropout > 0 {
		res.Dropout = &anynet.Dropout{KeepProb: 1 - cfg.Dropout}
	}
	for _, p := range res.Parameters() {
		initUniform(p.Vector, rng, InitRange)
	}
	return res, nil
}

// SetTraining enables or disables dropout.
func (a *Autoencoder) SetTraining(training bool) {
	if a.Dropout != nil {
		a.Dropout.Enabled = training
	}
}

// Parameters returns every trainable variable.
func (a *Autoencoder) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	res = append(res, a.EncEmbed.Parameters()...)
	res = append(res, a.Encoder.Parameters()...)
	res = append(res, a.DecEmbed.Parameters()...)
	res = append(res, a.Decoder.Parameters()...)
	res = append(res, a.Output.Parameters()...)
	return res
}

// Encode computes a packed batch of latent codes, one per
// row of source.
// If noise is non-nil and has a positive radius, Gaussian
// noise with that standard deviation is added.
//
// Rows must have MaxLen tokens and lengths must lie in
// [1, MaxLen]; otherwise Encode panics.
func (a *Autoencoder) Encode(source [][]int, lengths []int, noise *Noise) anydiff.Res {
	a.checkRows(source)
	if len(lengths) != len(source) {
		panic(fmt.Sprintf("lengths mismatch: %d lengths for %d rows", len(lengths),
			len(source)))
	}
	var steps int
	for _, l := range lengths {
		if l < 1 || l > a.MaxLen {
			panic(fmt.Sprintf("length %d out of range [1, %d]", l, a.MaxLen))
		}
		steps = essentials.MaxInt(steps, l)
	}

	batches := make([]*anyseq.ResBatch, steps)
	for t := range batches {
		present := make([]bool, len(source))
		var ids []int
		for i, row := range source {
			if t < lengths[i] {
				present[i] = true
				ids = append(ids, row[t])
			}
		}
		batches[t] = &anyseq.ResBatch{
			Packed:  a.embed(a.EncEmbed, ids),
			Present: present,
		}
	}
	inSeq := anyseq.ResSeq(a.Creator, batches)
	code := anyseq.Tail(anyrnn.Map(inSeq, a.Encoder))

	if noise != nil && noise.Radius > 0 {
		vec := a.Creator.MakeVector(code.Output().Len())
		anyvec.Rand(vec, anyvec.Normal, noise.Rand)
		vec.Scale(a.Creator.MakeNumeric(noise.Radius))
		code = anydiff.Add(code, anydiff.NewConst(vec))
	}
	return code
}

// Decode runs the decoder with teacher forcing and
// returns unnormalized token scores.
//
// The decoder input at step t is targets[i][t-1], or
// StartID at the first step.
// The result is time-major: the scores for sentence i at
// step t start at component (t*n+i)*Vocab, where n is the
// number of sentences.
func (a *Autoencoder) Decode(code anydiff.Res, targets [][]int) anydiff.Res {
	a.checkRows(targets)
	n := len(targets)
	a.checkCode(code.Output(), n)

	inputs := make([][]int, a.MaxLen)
	for t := range inputs {
		inputs[t] = make([]int, n)
		for i, row := range targets {
			if t == 0 {
				inputs[t][i] = StartID
			} else {
				inputs[t][i] = row[t-1]
			}
		}
	}

	code = a.drop(code, n)
	return anydiff.Pool(code, func(code anydiff.Res) anydiff.Res {
		cond := a.Decoder.Condition(code, n)
		return a.unroll(inputs, cond, a.startState(code, n), n)
	})
}

// Reconstruct encodes source (with noise) and decodes the
// result against targets.
func (a *Autoencoder) Reconstruct(source, targets [][]int, lengths []int,
	noise *Noise) anydiff.Res {
	return a.Decode(a.Encode(source, lengths, noise), targets)
}

// Generate decodes latent codes without ground truth,
// feeding each predicted token back in as the next input.
// Tokens are chosen by argmax, or sampled from the
// softmax distribution if sample is set.
//
// The result has one row of maxLen ids per code.
func (a *Autoencoder) Generate(code anyvec.Vector, maxLen int, sample bool,
	rng *rand.Rand) [][]int {
	n := code.Len() / a.Hidden
	a.checkCode(code, n)

	codeRes := a.drop(anydiff.NewConst(code), n)
	cond := a.Decoder.Condition(codeRes, n)
	state := a.startState(codeRes, n)

	res := make([][]int, n)
	ids := make([]int, n)
	for i := range ids {
		ids[i] = StartID
	}
	for t := 0; t < maxLen; t++ {
		in := a.embed(a.DecEmbed, ids)
		next := a.Decoder.Step(in, cond, state, n)
		scores := Floats(a.Output.Apply(next, n).Output())
		for i := range ids {
			row := scores[i*a.Vocab : (i+1)*a.Vocab]
			if sample {
				ids[i] = sampleSoftmax(row, rng)
			} else {
				ids[i] = Argmax(row)
			}
			res[i] = append(res[i], ids[i])
		}
		state = anydiff.NewConst(next.Output())
	}
	return res
}

func (a *Autoencoder) unroll(inputs [][]int, cond *Condition, state anydiff.Res,
	n int) anydiff.Res {
	in := a.embed(a.DecEmbed, inputs[0])
	next := a.Decoder.Step(in, cond, state, n)
	return anydiff.Pool(next, func(next anydiff.Res) anydiff.Res {
		scores := a.Output.Apply(next, n)
		if len(inputs) == 1 {
			return scores
		}
		return anydiff.Concat(scores, a.unroll(inputs[1:], cond, next, n))
	})
}

func (a *Autoencoder) embed(layer *anynet.FC, ids []int) anydiff.Res {
	return a.drop(layer.Apply(anydiff.NewConst(a.oneHot(ids)), len(ids)), len(ids))
}

func (a *Autoencoder) drop(in anydiff.Res, n int) anydiff.Res {
	if a.Dropout == nil {
		return in
	}
	return a.Dropout.Apply(in, n)
}

func (a *Autoencoder) startState(code anydiff.Res, n int) anydiff.Res {
	if a.HiddenInit {
		return code
	}
	return anydiff.NewConst(a.Creator.MakeVector(n * a.Hidden))
}

func (a *Autoencoder) oneHot(ids []int) anyvec.Vector {
	data := make([]float64, len(ids)*a.Vocab)
	for i, id := range ids {
		if id < 0 || id >= a.Vocab {
			panic(fmt.Sprintf("token id %d out of range [0, %d)", id, a.Vocab))
		}
		data[i*a.Vocab+id] = 1
	}
	return a.Creator.MakeVectorData(a.Creator.MakeNumericList(data))
}

func (a *Autoencoder) checkRows(rows [][]int) {
	if len(rows) == 0 {
		panic("empty batch")
	}
	for i, row := range rows {
		if len(row) != a.MaxLen {
			panic(fmt.Sprintf("row %d has %d tokens, want %d", i, len(row), a.MaxLen))
		}
	}
}

func (a *Autoencoder) checkCode(code anyvec.Vector, n int) {
	if n == 0 || code.Len() != n*a.Hidden {
		panic(fmt.Sprintf("code size %d does not match %d codes of size %d",
			code.Len(), n, a.Hidden))
	}
}

// Floats returns the components of v as float64s.
func Floats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic(fmt.Sprintf("unsupported numeric list: %T", data))
	}
}

// SetFloats overwrites the components of v.
func SetFloats(v anyvec.Vector, data []float64) {
	v.SetData(v.Creator().MakeNumericList(data))
}

// Argmax returns the index of the largest component,
// preferring the lowest index on ties.
func Argmax(row []float64) int {
	best := 0
	for i, x := range row {
		if x > row[best] {
			best = i
		}
	}
	return best
}

func sampleSoftmax(row []float64, rng *rand.Rand) int {
	max := row[Argmax(row)]
	probs := make([]float64, len(row))
	var sum float64
	for i, x := range row {
		probs[i] = math.Exp(x - max)
		sum += probs[i]
	}
	r := rng.Float64() * sum
	for i, p := range probs {
		r -= p
		if r <= 0 {
			return i
		}
	}
	return len(row) - 1
}

func initUniform(v anyvec.Vector, rng *rand.Rand, bound float64) {
	data := make([]float64, v.Len())
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
	SetFloats(v, data)
}
