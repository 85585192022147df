package train

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/Unityaccount1/TEXTKD-GAN/seqae"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestReconstructionLossUniform(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	targets := [][]int{{1, 2, 0}, {3, 0, 0}}
	scores := anydiff.NewVar(c.MakeVector(2 * 3 * 5))
	loss := ReconstructionLoss(scores, targets, 5)
	if x := seqae.Floats(loss.Output())[0]; math.Abs(x-math.Log(5)) > 1e-8 {
		t.Errorf("expected %v got %v", math.Log(5), x)
	}

	grad := anydiff.NewGrad(scores)
	loss.Propagate(c.MakeVectorData([]float64{1}), grad)
	g := seqae.Floats(grad[scores])

	// Row for sentence 1 at step 0 is row index 1.
	row := g[5:10]
	for i, x := range row {
		expected := 0.2 / 6
		if i == 3 {
			expected = (0.2 - 1) / 6
		}
		if math.Abs(x-expected) > 1e-8 {
			t.Errorf("grad %d: expected %v got %v", i, expected, x)
		}
	}
}

func TestPredictionsLayout(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	// Two sentences, two steps, three classes; time-major.
	scores := c.MakeVectorData([]float64{
		0, 1, 0, // t=0, i=0
		1, 0, 0, // t=0, i=1
		0, 0, 1, // t=1, i=0
		0, 1, 0, // t=1, i=1
	})
	preds := Predictions(scores, 2, 2, 3)
	if !reflect.DeepEqual(preds, [][]int{{1, 2}, {0, 1}}) {
		t.Errorf("unexpected predictions: %v", preds)
	}
}

func TestAccuracy(t *testing.T) {
	targets := [][]int{{4, 5, 2, 0}, {6, 2, 0, 0}}
	lengths := []int{3, 2}

	if acc := Accuracy(targets, targets, lengths); acc != 1 {
		t.Errorf("perfect predictions: expected 1 got %v", acc)
	}

	// Correct pad predictions never count, and a wrong
	// token at a pad position costs nothing.
	preds := [][]int{{4, 0, 2, 7}, {0, 0, 0, 0}}
	if acc := Accuracy(preds, targets, lengths); math.Abs(acc-(2.0/3)/2) > 1e-12 {
		t.Errorf("expected %v got %v", (2.0/3)/2, acc)
	}

	for _, acc := range []float64{
		Accuracy([][]int{{9, 9, 9, 9}, {9, 9, 9, 9}}, targets, lengths),
		Accuracy(targets, targets, []int{4, 4}),
	} {
		if acc < 0 || acc > 1 {
			t.Errorf("accuracy out of range: %v", acc)
		}
	}
}

func TestClamp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(c.MakeVectorData([]float64{-3, -0.5, 0, 0.5, 3}))
	Clamp([]*anydiff.Var{v}, 1)
	expected := []float64{-1, -0.5, 0, 0.5, 1}
	if !reflect.DeepEqual(seqae.Floats(v.Vector), expected) {
		t.Errorf("unexpected result: %v", seqae.Floats(v.Vector))
	}
	Clamp([]*anydiff.Var{v}, 1)
	if !reflect.DeepEqual(seqae.Floats(v.Vector), expected) {
		t.Errorf("second clamp changed values: %v", seqae.Floats(v.Vector))
	}
}

func TestSGDClipsByValue(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(c.MakeVectorData([]float64{0, 0, 0}))
	g := anydiff.Grad{v: c.MakeVectorData([]float64{5, -0.25, -7})}
	(&SGD{Rate: 0.5, Clip: 1}).Step(g)
	if !reflect.DeepEqual(seqae.Floats(v.Vector), []float64{-0.5, 0.125, 0.5}) {
		t.Errorf("unexpected update: %v", seqae.Floats(v.Vector))
	}
}

func TestAdamUpdatesOnlyGivenVars(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v1 := anydiff.NewVar(c.MakeVectorData([]float64{1, 1}))
	v2 := anydiff.NewVar(c.MakeVectorData([]float64{1, 1}))
	g := anydiff.Grad{
		v1: c.MakeVectorData([]float64{1, -1}),
		v2: c.MakeVectorData([]float64{1, 1}),
	}
	NewAdam(0.1, 0.9, []*anydiff.Var{v1}).Step(subGrad(g, []*anydiff.Var{v1}))
	d1 := seqae.Floats(v1.Vector)
	if !(d1[0] < 1 && d1[1] > 1) {
		t.Errorf("unexpected v1: %v", d1)
	}
	if !reflect.DeepEqual(seqae.Floats(v2.Vector), []float64{1, 1}) {
		t.Errorf("v2 changed: %v", seqae.Floats(v2.Vector))
	}
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("2-4-6")
	if err != nil || !reflect.DeepEqual(s, []int{2, 4, 6}) {
		t.Errorf("unexpected schedule: %v %v", s, err)
	}
	if s, err := ParseSchedule(""); err != nil || s != nil {
		t.Errorf("empty schedule: %v %v", s, err)
	}
	if _, err := ParseSchedule("2-x"); err == nil {
		t.Error("expected error")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	mutations := map[string]func(*Config){
		"Arch":     func(c *Config) { c.ArchD = "300-" },
		"Schedule": func(c *Config) { c.GanSchedule = "0" },
		"Batch":    func(c *Config) { c.BatchSize = 0 },
		"Temp":     func(c *Config) { c.Temp = 0 },
		"Clamp":    func(c *Config) { c.GanClamp = -1 },
		"Layers":   func(c *Config) { c.NLayers = 0 },
		"Dropout":  func(c *Config) { c.Dropout = 1 },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		if cfg.Validate() == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestConfigValidateOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLen = 0
	cfg.EmSize = 0
	cfg.BatchSize = 0
	cfg.SampleInterval = 0
	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "maxlen") {
			t.Fatalf("expected the maxlen error first, got %v", err)
		}
	}
}

func TestStateEpochs(t *testing.T) {
	s := NewState(0.1)
	schedule := []int{2, 3}
	var iters []int
	for epoch := 1; epoch <= 5; epoch++ {
		s.BeginEpoch(epoch, schedule)
		iters = append(iters, s.GanIters)
	}
	if !reflect.DeepEqual(iters, []int{1, 2, 3, 3, 3}) {
		t.Errorf("unexpected iterations: %v", iters)
	}

	if !s.Observe(2) || s.Observe(2) || s.Observe(3) || s.BadEvals != 2 {
		t.Errorf("unexpected observation state: %+v", s)
	}
	if !s.Observe(1) || s.BadEvals != 0 {
		t.Errorf("improvement not recorded: %+v", s)
	}
}
