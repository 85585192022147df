package train

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Unityaccount1/TEXTKD-GAN/mlp"
)

// Config holds every training hyper-parameter.
type Config struct {
	// Model shape.
	MaxLen      int
	EmSize      int
	NHidden     int
	NLayers     int
	Dropout     float64
	HiddenInit  bool
	ArchG       string
	ArchD       string
	ZSize       int
	NoiseRadius float64
	NoiseAnneal float64
	Temp        float64

	// GanToEnc scales the constant gradient routed from
	// the critic into the encoder during critic steps.
	GanToEnc float64

	// Schedule.
	Epochs      int
	MinEpochs   int
	Patience    int
	BatchSize   int
	NItersAE    int
	NItersGanD  int
	NItersGanG  int
	GanSchedule string
	Shuffle     bool

	// Optimization.
	LRAE     float64
	LRGanG   float64
	LRGanD   float64
	Beta1    float64
	Clip     float64
	GanClamp float64

	// Reporting.
	Sample         bool
	LogInterval    int
	AnnealInterval int
	SampleInterval int

	Seed int64
}

// DefaultConfig returns the default hyper-parameters.
func DefaultConfig() Config {
	return Config{
		MaxLen:      30,
		EmSize:      300,
		NHidden:     300,
		NLayers:     1,
		ArchG:       "300-300",
		ArchD:       "300-300",
		ZSize:       100,
		NoiseRadius: 0.2,
		NoiseAnneal: 0.995,
		Temp:        1,
		GanToEnc:    -0.01,

		Epochs:      15,
		MinEpochs:   6,
		Patience:    5,
		BatchSize:   64,
		NItersAE:    1,
		NItersGanD:  5,
		NItersGanG:  1,
		GanSchedule: "2-4-6",

		LRAE:     1,
		LRGanG:   5e-05,
		LRGanD:   1e-05,
		Beta1:    0.9,
		Clip:     1,
		GanClamp: 0.01,

		LogInterval:    200,
		AnnealInterval: 100,
		SampleInterval: 300,

		Seed: 1111,
	}
}

// Validate checks the configuration before any model is
// built.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"maxlen", c.MaxLen},
		{"emsize", c.EmSize},
		{"nhidden", c.NHidden},
		{"nlayers", c.NLayers},
		{"z_size", c.ZSize},
		{"epochs", c.Epochs},
		{"batch_size", c.BatchSize},
		{"niters_ae", c.NItersAE},
		{"log_interval", c.LogInterval},
		{"anneal_interval", c.AnnealInterval},
		{"sample_interval", c.SampleInterval},
	}
	for _, field := range positive {
		if field.value <= 0 {
			return fmt.Errorf("config: %s must be positive (got %d)", field.name, field.value)
		}
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("config: dropout must lie in [0, 1) (got %v)", c.Dropout)
	}
	if c.NItersGanD < 0 || c.NItersGanG < 0 || c.MinEpochs < 0 || c.Patience < 0 {
		return fmt.Errorf("config: iteration counts must not be negative")
	}
	if c.Temp <= 0 {
		return fmt.Errorf("config: temp must be positive (got %v)", c.Temp)
	}
	if c.Clip <= 0 || c.GanClamp <= 0 {
		return fmt.Errorf("config: clip and gan_clamp must be positive")
	}
	if c.NoiseRadius < 0 || c.NoiseAnneal <= 0 {
		return fmt.Errorf("config: bad noise settings (radius %v, anneal %v)",
			c.NoiseRadius, c.NoiseAnneal)
	}
	for _, arch := range []string{c.ArchG, c.ArchD} {
		if _, err := mlp.ParseArch(arch); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if _, err := ParseSchedule(c.GanSchedule); err != nil {
		return err
	}
	return nil
}

// ParseSchedule parses a dash-separated list of epochs,
// such as "2-4-6".
func ParseSchedule(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var res []int
	for _, part := range strings.Split(s, "-") {
		epoch, err := strconv.Atoi(part)
		if err != nil || epoch < 1 {
			return nil, fmt.Errorf("config: bad GAN schedule %q", s)
		}
		res = append(res, epoch)
	}
	return res, nil
}
