// Package train runs adversarially regularized
// autoencoder training: reconstruction steps for the
// autoencoder interleaved with Wasserstein critic and
// generator steps in latent space.
package train

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/Unityaccount1/TEXTKD-GAN/corpus"
	"github.com/Unityaccount1/TEXTKD-GAN/gradroute"
	"github.com/Unityaccount1/TEXTKD-GAN/mlp"
	"github.com/Unityaccount1/TEXTKD-GAN/seqae"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/stat"
)

// AEStats summarizes a reconstruction step.
type AEStats struct {
	Loss     float64
	Accuracy float64
}

// CriticStats summarizes a critic step.
//
// Loss is Fake-Real, the quantity the critic minimizes.
type CriticStats struct {
	Real float64
	Fake float64
	Loss float64
	AE   AEStats
}

// Trainer owns the three models and their optimizers.
type Trainer struct {
	Config Config
	State  State

	AE        *seqae.Autoencoder
	Generator *mlp.Network
	Critic    *mlp.Network

	// Routes holds the gradient overrides used at the
	// critic's input.
	Routes *gradroute.Registry

	Train []*corpus.Batch
	Valid []*corpus.Batch

	// Render converts generated ids to text.
	// If nil, ids are logged as-is.
	Render func([][]int) []string

	// Checkpoint, if non-nil, is called after every
	// epoch.
	Checkpoint func(epoch int) error

	Logger *log.Logger
	Rand   *rand.Rand

	aeOpt     *SGD
	criticOpt *Adam
	genOpt    *Adam

	schedule   []int
	fixedNoise anyvec.Vector
}

// NewTrainer builds the models for a vocabulary of the
// given size.
// Every batch is checked against the configured shape.
func NewTrainer(c anyvec.Creator, cfg Config, vocab int, trainData,
	validData []*corpus.Batch) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(trainData) == 0 {
		return nil, fmt.Errorf("no training batches")
	}
	for _, batches := range [][]*corpus.Batch{trainData, validData} {
		for i, b := range batches {
			if err := b.Check(cfg.BatchSize, cfg.MaxLen); err != nil {
				return nil, essentials.AddCtx(fmt.Sprintf("batch %d", i), err)
			}
		}
	}
	schedule, err := ParseSchedule(cfg.GanSchedule)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ae, err := seqae.New(c, rng, seqae.Config{
		Vocab:      vocab,
		EmSize:     cfg.EmSize,
		Hidden:     cfg.NHidden,
		MaxLen:     cfg.MaxLen,
		NLayers:    cfg.NLayers,
		Dropout:    cfg.Dropout,
		HiddenInit: cfg.HiddenInit,
	})
	if err != nil {
		return nil, err
	}
	gen, err := mlp.NewGenerator(c, rng, cfg.ZSize, cfg.NHidden, cfg.ArchG)
	if err != nil {
		return nil, essentials.AddCtx("generator", err)
	}
	critic, err := mlp.NewCritic(c, rng, cfg.NHidden, cfg.ArchD)
	if err != nil {
		return nil, essentials.AddCtx("critic", err)
	}

	t := &Trainer{
		Config:    cfg,
		State:     NewState(cfg.NoiseRadius),
		AE:        ae,
		Generator: gen,
		Critic:    critic,
		Routes:    gradroute.NewRegistry(),
		Train:     trainData,
		Valid:     validData,
		Logger:    log.New(os.Stderr, "", log.LstdFlags),
		Rand:      rng,
		aeOpt:     &SGD{Rate: cfg.LRAE, Clip: cfg.Clip},
		criticOpt: NewAdam(cfg.LRGanD, cfg.Beta1, critic.Parameters()),
		genOpt:    NewAdam(cfg.LRGanG, cfg.Beta1, gen.Parameters()),
		schedule:  schedule,
	}
	gradroute.RegisterDefaults(t.Routes, t.Logger)
	t.fixedNoise = t.noise(cfg.BatchSize)
	return t, nil
}

// Run trains until Config.Epochs epochs have completed,
// continuing after State.Epoch.
//
// After each epoch, the validation batches are evaluated;
// training stops early once Config.Patience evaluations in
// a row fail to improve, provided at least
// Config.MinEpochs epochs have run.
func (t *Trainer) Run() error {
	for epoch := t.State.Epoch + 1; epoch <= t.Config.Epochs; epoch++ {
		if err := t.RunEpoch(epoch); err != nil {
			return err
		}
		stop := false
		if len(t.Valid) > 0 {
			stats, err := t.Evaluate(t.Valid)
			if err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
			t.Logger.Printf("| end of epoch %3d | valid loss %5.2f | valid acc %5.2f",
				epoch, stats.Loss, stats.Accuracy)
			if !t.State.Observe(stats.Loss) && t.Config.Patience > 0 &&
				t.State.BadEvals >= t.Config.Patience && epoch >= t.Config.MinEpochs {
				t.Logger.Printf("stopping early after %d epochs without improvement",
					t.State.BadEvals)
				stop = true
			}
		}
		if t.Checkpoint != nil {
			if err := t.Checkpoint(epoch); err != nil {
				return essentials.AddCtx("checkpoint", err)
			}
		}
		if stop {
			break
		}
	}
	return nil
}

// RunEpoch runs one pass over the training batches.
//
// Each group of Config.NItersAE reconstruction steps is
// followed by State.GanIters GAN rounds, each of which
// runs Config.NItersGanD critic steps and
// Config.NItersGanG generator steps on random batches.
func (t *Trainer) RunEpoch(epoch int) error {
	if t.State.BeginEpoch(epoch, t.schedule) {
		t.Logger.Printf("GAN iterations increased to %d", t.State.GanIters)
	}
	batches := t.Train
	if t.Config.Shuffle {
		batches = make([]*corpus.Batch, len(t.Train))
		for i, j := range t.Rand.Perm(len(t.Train)) {
			batches[i] = t.Train[j]
		}
	}

	var totalLoss float64
	var critic CriticStats
	var genLoss float64
	start := time.Now()

	for niter := 0; niter < len(batches); {
		for i := 0; i < t.Config.NItersAE && niter < len(batches); i++ {
			stats, err := t.AEStep(batches[niter])
			if err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
			totalLoss += stats.Loss
			if niter%t.Config.LogInterval == 0 && niter > 0 {
				elapsed := time.Since(start)
				t.Logger.Printf("| epoch %3d | %5d/%5d batches | ms/batch %5.2f | "+
					"loss %5.2f | acc %8.2f", epoch, niter, len(batches),
					elapsed.Seconds()*1000/float64(niter),
					totalLoss/float64(t.Config.LogInterval), stats.Accuracy)
				totalLoss = 0
			}
			niter++
		}

		for k := 0; k < t.State.GanIters; k++ {
			for i := 0; i < t.Config.NItersGanD; i++ {
				var err error
				critic, err = t.CriticStep(t.randomBatch())
				if err != nil {
					return fmt.Errorf("epoch %d: %w", epoch, err)
				}
			}
			for i := 0; i < t.Config.NItersGanG; i++ {
				var err error
				genLoss, err = t.GeneratorStep(t.randomBatch())
				if err != nil {
					return fmt.Errorf("epoch %d: %w", epoch, err)
				}
			}
		}

		if t.State.Tick(t.Config.AnnealInterval, t.Config.NoiseAnneal) {
			t.Logger.Printf("[%d/%d][%d/%d] Loss_D: %.8f (Loss_D_real: %.8f "+
				"Loss_D_fake: %.8f) Loss_G: %.8f", epoch, t.Config.Epochs, niter,
				len(batches), critic.Loss, critic.Real, critic.Fake, genLoss)
			if t.State.GlobalStep%t.Config.SampleInterval == 0 {
				t.logSamples()
			}
		}
	}
	return nil
}

// AEStep runs one reconstruction update on the
// autoencoder, with noise of the current radius added to
// the codes.
func (t *Trainer) AEStep(b *corpus.Batch) (AEStats, error) {
	if err := b.Check(t.Config.BatchSize, t.Config.MaxLen); err != nil {
		return AEStats{}, err
	}
	params := t.AE.Parameters()
	grad := anydiff.NewGrad(params...)
	stats := t.reconstruct(b, t.codeNoise(), grad)
	if err := checkFinite("reconstruction loss", stats.Loss); err != nil {
		return stats, err
	}
	t.aeOpt.Step(grad)
	Clamp(params, t.Config.Clip)
	return stats, nil
}

// CriticStep runs one critic update.
//
// The critic sees the noise-free code of b through a
// pass-through route and a generated code through a
// negating route, and is trained to score the former
// above the latter.
// The routed gradient reaches the encoder, scaled by
// Config.GanToEnc, and is applied together with a
// reconstruction update on b.
// Critic weights are clamped afterwards.
func (t *Trainer) CriticStep(b *corpus.Batch) (CriticStats, error) {
	if err := b.Check(t.Config.BatchSize, t.Config.MaxLen); err != nil {
		return CriticStats{}, err
	}
	n := b.Size()
	aeParams := t.AE.Parameters()
	criticParams := t.Critic.Parameters()
	grad := anydiff.NewGrad(append(append([]*anydiff.Var{}, criticParams...),
		aeParams...)...)

	t.AE.SetTraining(true)
	realCode := t.AE.Encode(b.Source, b.Lengths, nil)
	fakeCode := t.Generator.Apply(anydiff.NewConst(t.noise(n)), n)
	stats, err := t.criticPass(realCode, fakeCode, n, grad)
	if err != nil {
		return stats, err
	}

	stats.AE = t.reconstruct(b, t.codeNoise(), grad)
	if err := checkFinite("reconstruction loss", stats.AE.Loss); err != nil {
		return stats, err
	}

	t.criticOpt.Step(subGrad(grad, criticParams))
	Clamp(criticParams, t.Config.GanClamp)
	t.aeOpt.Step(subGrad(grad, aeParams))
	Clamp(aeParams, t.Config.Clip)
	return stats, nil
}

// criticPass scores real and fake codes and accumulates
// the gradient of Fake-Real into grad.
// The code boundaries are routed: the real code receives
// Config.GanToEnc per component and the fake code -1.
func (t *Trainer) criticPass(realCode, fakeCode anydiff.Res, n int,
	grad anydiff.Grad) (CriticStats, error) {
	c := t.AE.Creator
	realScore := t.Critic.Score(gradroute.Route(realCode, t.realRoute()), n, true)
	fakeScore := t.Critic.Score(gradroute.Route(fakeCode, t.route(gradroute.NegateName)),
		n, true)

	stats := CriticStats{Real: scalar(realScore), Fake: scalar(fakeScore)}
	stats.Loss = stats.Fake - stats.Real
	if err := checkFinite("critic loss", stats.Loss); err != nil {
		return stats, err
	}
	realScore.Propagate(constVec(c, -1), grad)
	fakeScore.Propagate(constVec(c, 1), grad)
	return stats, nil
}

// GeneratorStep runs one generator update from fresh
// noise, with a batch the size of b.
// The generated codes reach the critic through a
// pass-through route.
// It returns the mean critic score of the generated codes.
func (t *Trainer) GeneratorStep(b *corpus.Batch) (float64, error) {
	n := b.Size()
	params := t.Generator.Parameters()
	grad := anydiff.NewGrad(params...)

	fakeCode := t.Generator.Apply(anydiff.NewConst(t.noise(n)), n)
	score := t.Critic.Score(gradroute.Route(fakeCode, t.route(gradroute.PassName)), n, true)
	loss := scalar(score)
	if err := checkFinite("generator loss", loss); err != nil {
		return loss, err
	}
	score.Propagate(constVec(t.AE.Creator, 1), grad)
	t.genOpt.Step(grad)
	return loss, nil
}

// Evaluate computes the mean noise-free reconstruction
// loss and accuracy over batches without updating any
// weights.
func (t *Trainer) Evaluate(batches []*corpus.Batch) (AEStats, error) {
	var losses, accs []float64
	for _, b := range batches {
		if err := b.Check(t.Config.BatchSize, t.Config.MaxLen); err != nil {
			return AEStats{}, err
		}
		stats := t.reconstruct(b, nil, nil)
		if err := checkFinite("validation loss", stats.Loss); err != nil {
			return stats, err
		}
		losses = append(losses, stats.Loss)
		accs = append(accs, stats.Accuracy)
	}
	return AEStats{Loss: stat.Mean(losses, nil), Accuracy: stat.Mean(accs, nil)}, nil
}

// GenerateSamples decodes codes produced by the generator
// from the given noise batch.
func (t *Trainer) GenerateSamples(noise anyvec.Vector) [][]int {
	n := noise.Len() / t.Config.ZSize
	t.AE.SetTraining(false)
	codes := t.Generator.Apply(anydiff.NewConst(noise), n).Output()
	return t.AE.Generate(codes, t.Config.MaxLen, t.Config.Sample, t.Rand)
}

// reconstruct runs the autoencoder on b and, if grad is
// non-nil, accumulates the reconstruction gradient.
func (t *Trainer) reconstruct(b *corpus.Batch, noise *seqae.Noise,
	grad anydiff.Grad) AEStats {
	c := t.AE.Creator
	t.AE.SetTraining(grad != nil)
	scores := t.AE.Reconstruct(b.Source, b.Target, b.Lengths, noise)
	if t.Config.Temp != 1 {
		scores = anydiff.Scale(scores, c.MakeNumeric(1/t.Config.Temp))
	}
	loss := ReconstructionLoss(scores, b.Target, t.AE.Vocab)
	preds := Predictions(scores.Output(), b.Size(), t.Config.MaxLen, t.AE.Vocab)
	stats := AEStats{
		Loss:     scalar(loss),
		Accuracy: Accuracy(preds, b.Target, b.Lengths),
	}
	if grad != nil {
		loss.Propagate(constVec(c, 1), grad)
	}
	return stats
}

func (t *Trainer) logSamples() {
	ids := t.GenerateSamples(t.fixedNoise)
	var lines []string
	if t.Render != nil {
		lines = t.Render(ids)
	} else {
		for _, row := range ids {
			lines = append(lines, fmt.Sprint(row))
		}
	}
	t.Logger.Printf("Evaluating generator: %s", strings.Join(lines, " | "))
}

func (t *Trainer) route(name string) gradroute.Override {
	o, ok := t.Routes.Lookup(name)
	if !ok {
		panic("missing gradient override: " + name)
	}
	return o
}

func (t *Trainer) realRoute() gradroute.Override {
	return gradroute.Scaled(t.route(gradroute.PassName), t.Config.GanToEnc)
}

func (t *Trainer) codeNoise() *seqae.Noise {
	return &seqae.Noise{Radius: t.State.NoiseRadius, Rand: t.Rand}
}

func (t *Trainer) noise(n int) anyvec.Vector {
	vec := t.AE.Creator.MakeVector(n * t.Config.ZSize)
	anyvec.Rand(vec, anyvec.Normal, t.Rand)
	return vec
}

func (t *Trainer) randomBatch() *corpus.Batch {
	return t.Train[t.Rand.Intn(len(t.Train))]
}

func constVec(c anyvec.Creator, x float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList([]float64{x}))
}
