package train

import (
	"errors"
	"fmt"
	"math"

	"github.com/Unityaccount1/TEXTKD-GAN/corpus"
	"github.com/Unityaccount1/TEXTKD-GAN/seqae"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"gonum.org/v1/gonum/stat"
)

// ErrNonFinite is returned when a loss becomes NaN or
// infinite.
var ErrNonFinite = errors.New("non-finite loss")

// ReconstructionLoss computes the mean cross-entropy
// between time-major decoder scores and the targets.
// Every position counts, padding included.
func ReconstructionLoss(scores anydiff.Res, targets [][]int, vocab int) anydiff.Res {
	n := len(targets)
	steps := len(targets[0])
	c := scores.Output().Creator()
	if scores.Output().Len() != n*steps*vocab {
		panic(fmt.Sprintf("score size %d does not match %d*%d*%d", scores.Output().Len(),
			n, steps, vocab))
	}

	oneHot := make([]float64, n*steps*vocab)
	for t := 0; t < steps; t++ {
		for i, row := range targets {
			oneHot[(t*n+i)*vocab+row[t]] = 1
		}
	}
	logProbs := anydiff.LogSoftmax(scores, vocab)
	picked := anydiff.Mul(logProbs, anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(oneHot))))
	return anydiff.Scale(anydiff.Sum(picked), c.MakeNumeric(-1/float64(n*steps)))
}

// Predictions takes the argmax of time-major scores.
// The result has one row of steps ids per sentence.
func Predictions(scores anyvec.Vector, n, steps, vocab int) [][]int {
	data := seqae.Floats(scores)
	res := make([][]int, n)
	for i := range res {
		res[i] = make([]int, steps)
		for t := range res[i] {
			start := (t*n + i) * vocab
			res[i][t] = seqae.Argmax(data[start : start+vocab])
		}
	}
	return res
}

// Accuracy is the mean over sentences of the fraction of
// correctly predicted tokens.
//
// A position counts only if the prediction is not the pad
// token, and each sentence is normalized by its length.
// The result lies in [0, 1].
func Accuracy(preds, targets [][]int, lengths []int) float64 {
	perSentence := make([]float64, len(preds))
	for i, row := range preds {
		var correct int
		for t, id := range row {
			if id != corpus.PadID && id == targets[i][t] {
				correct++
			}
		}
		perSentence[i] = float64(correct) / float64(lengths[i])
	}
	return stat.Mean(perSentence, nil)
}

// Clamp clips every component of every variable into
// [-limit, limit].
func Clamp(params []*anydiff.Var, limit float64) {
	for _, p := range params {
		c := p.Vector.Creator()
		anyvec.ClipRange(p.Vector, c.MakeNumeric(-limit), c.MakeNumeric(limit))
	}
}

func checkFinite(name string, x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("%s is %v: %w", name, x, ErrNonFinite)
	}
	return nil
}

func scalar(r anydiff.Res) float64 {
	return seqae.Floats(r.Output())[0]
}
