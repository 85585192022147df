// Command arae trains an adversarially regularized
// autoencoder on a directory of tokenized sentences.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/Unityaccount1/TEXTKD-GAN/checkpoint"
	"github.com/Unityaccount1/TEXTKD-GAN/corpus"
	"github.com/Unityaccount1/TEXTKD-GAN/train"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/essentials"
)

func main() {
	cfg := train.DefaultConfig()
	var dataPath string
	var outDir string
	var loadPath string
	var vocabSize int
	var lowercase bool
	var single bool

	flag.StringVar(&dataPath, "data_path", "", "directory with train.txt and test.txt")
	flag.StringVar(&outDir, "outf", "output", "directory for checkpoints")
	flag.StringVar(&loadPath, "load", "", "checkpoint to resume from")
	flag.IntVar(&vocabSize, "vocab_size", 11000, "vocabulary size including special tokens")
	flag.BoolVar(&lowercase, "lowercase", false, "lowercase all text")
	flag.BoolVar(&single, "float32", false, "use 32-bit arithmetic")

	flag.IntVar(&cfg.MaxLen, "maxlen", cfg.MaxLen, "maximum sentence length")
	flag.IntVar(&cfg.EmSize, "emsize", cfg.EmSize, "word embedding size")
	flag.IntVar(&cfg.NHidden, "nhidden", cfg.NHidden, "hidden units per layer")
	flag.IntVar(&cfg.NLayers, "nlayers", cfg.NLayers, "number of encoder LSTM layers")
	flag.Float64Var(&cfg.Dropout, "dropout", cfg.Dropout, "dropout probability (0 = no dropout)")
	flag.Float64Var(&cfg.NoiseRadius, "noise_radius", cfg.NoiseRadius, "stddev of code noise")
	flag.Float64Var(&cfg.NoiseAnneal, "noise_anneal", cfg.NoiseAnneal, "noise radius decay factor")
	flag.BoolVar(&cfg.HiddenInit, "hidden_init", cfg.HiddenInit, "seed decoder state with the code")
	flag.StringVar(&cfg.ArchG, "arch_g", cfg.ArchG, "generator hidden layers")
	flag.StringVar(&cfg.ArchD, "arch_d", cfg.ArchD, "critic hidden layers")
	flag.IntVar(&cfg.ZSize, "z_size", cfg.ZSize, "generator noise size")
	flag.Float64Var(&cfg.Temp, "temp", cfg.Temp, "softmax temperature")
	flag.Float64Var(&cfg.GanToEnc, "gan_toenc", cfg.GanToEnc, "scale of critic gradient into encoder")

	flag.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "maximum number of epochs")
	flag.IntVar(&cfg.MinEpochs, "min_epochs", cfg.MinEpochs, "epochs before early stopping applies")
	flag.IntVar(&cfg.Patience, "patience", cfg.Patience, "evaluations without improvement before stopping")
	flag.IntVar(&cfg.BatchSize, "batch_size", cfg.BatchSize, "sentences per batch")
	flag.IntVar(&cfg.NItersAE, "niters_ae", cfg.NItersAE, "autoencoder steps per iteration")
	flag.IntVar(&cfg.NItersGanD, "niters_gan_d", cfg.NItersGanD, "critic steps per GAN iteration")
	flag.IntVar(&cfg.NItersGanG, "niters_gan_g", cfg.NItersGanG, "generator steps per GAN iteration")
	flag.StringVar(&cfg.GanSchedule, "niters_gan_schedule", cfg.GanSchedule,
		"epochs at which GAN iterations increase")
	flag.BoolVar(&cfg.Shuffle, "shuffle", cfg.Shuffle, "reshuffle training batches every epoch")

	flag.Float64Var(&cfg.LRAE, "lr_ae", cfg.LRAE, "autoencoder learning rate")
	flag.Float64Var(&cfg.LRGanG, "lr_gan_g", cfg.LRGanG, "generator learning rate")
	flag.Float64Var(&cfg.LRGanD, "lr_gan_d", cfg.LRGanD, "critic learning rate")
	flag.Float64Var(&cfg.Beta1, "beta1", cfg.Beta1, "Adam first-moment decay")
	flag.Float64Var(&cfg.Clip, "clip", cfg.Clip, "autoencoder gradient and weight clip")
	flag.Float64Var(&cfg.GanClamp, "gan_clamp", cfg.GanClamp, "critic weight clamp")

	flag.BoolVar(&cfg.Sample, "sample", cfg.Sample, "sample instead of argmax decoding")
	flag.IntVar(&cfg.LogInterval, "log_interval", cfg.LogInterval, "batches between loss reports")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.Parse()

	if dataPath == "" {
		essentials.Die("missing -data_path")
	}
	if err := cfg.Validate(); err != nil {
		essentials.Die(err)
	}

	data, err := corpus.Load(dataPath, corpus.Options{
		MaxLen:    cfg.MaxLen,
		VocabSize: vocabSize,
		Lowercase: lowercase,
	})
	if err != nil {
		essentials.Die(err)
	}
	log.Printf("vocabulary: %d words, %d train, %d valid sentences", data.Dict.Len(),
		len(data.Train), len(data.Valid))

	var c anyvec.Creator = anyvec64.DefaultCreator{}
	if single {
		c = anyvec32.DefaultCreator{}
	}
	trainer, err := train.NewTrainer(c, cfg, data.Dict.Len(),
		corpus.Batchify(data.Train, cfg.BatchSize, cfg.MaxLen, nil),
		corpus.Batchify(data.Valid, cfg.BatchSize, cfg.MaxLen, nil))
	if err != nil {
		essentials.Die(err)
	}
	trainer.Logger = log.New(os.Stderr, "", log.LstdFlags)
	trainer.Render = data.Dict.Render

	groups := checkpoint.Groups{
		checkpoint.Autoencoder: trainer.AE.Parameters(),
		checkpoint.Generator:   trainer.Generator.Parameters(),
		checkpoint.Critic:      trainer.Critic.Parameters(),
	}
	if loadPath != "" {
		snap, err := checkpoint.Load(loadPath, data.Dict.IDToWord, groups)
		if err != nil {
			essentials.Die(err)
		}
		if err := trainer.UnmarshalBinary(snap.State); err != nil {
			essentials.Die(err)
		}
		log.Printf("resumed after epoch %d", snap.Epoch)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		essentials.Die(err)
	}
	trainer.Checkpoint = func(epoch int) error {
		state, err := trainer.MarshalBinary()
		if err != nil {
			return err
		}
		path := checkpoint.Path(outDir, epoch)
		info := checkpoint.Info{Epoch: epoch, Words: data.Dict.IDToWord, State: state}
		if err := checkpoint.Save(path, info, groups); err != nil {
			return err
		}
		log.Printf("saved %s", path)
		return nil
	}

	if err := trainer.Run(); err != nil {
		essentials.Die(err)
	}
}
