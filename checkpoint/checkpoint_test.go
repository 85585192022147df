package checkpoint

import (
	"errors"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func randomVars(c anyvec.Creator, rng *rand.Rand, sizes ...int) []*anydiff.Var {
	var res []*anydiff.Var
	for _, size := range sizes {
		v := c.MakeVector(size)
		anyvec.Rand(v, anyvec.Normal, rng)
		res = append(res, anydiff.NewVar(v))
	}
	return res
}

func TestSaveLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	c := anyvec64.DefaultCreator{}
	saved := Groups{
		Autoencoder: randomVars(c, rng, 7, 3),
		Critic:      randomVars(c, rng, 5),
	}
	path := filepath.Join(t.TempDir(), "model.gob")
	words := []string{"<pad>", "<sos>", "<eos>", "<oov>", "dog"}
	info := Info{Epoch: 3, Words: words, State: []byte{1, 2, 3}}
	if err := Save(path, info, saved); err != nil {
		t.Fatal(err)
	}

	loaded := Groups{
		Autoencoder: randomVars(c, rng, 7, 3),
		Critic:      randomVars(c, rng, 5),
	}
	snap, err := Load(path, words, loaded)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(snap.Info, info) {
		t.Errorf("unexpected metadata: %+v", snap.Info)
	}
	for name, vars := range saved {
		for i, v := range vars {
			if !reflect.DeepEqual(v.Vector.Data(), loaded[name][i].Vector.Data()) {
				t.Errorf("%s vector %d differs", name, i)
			}
		}
	}
}

func TestLoadConvertsPrecision(t *testing.T) {
	c64 := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(c64.MakeVectorData([]float64{0.5, -2, 3.25}))
	path := filepath.Join(t.TempDir(), "model.gob")
	if err := Save(path, Info{Epoch: 1}, Groups{Generator: {v}}); err != nil {
		t.Fatal(err)
	}

	c32 := anyvec32.DefaultCreator{}
	target := anydiff.NewVar(c32.MakeVector(3))
	if _, err := Load(path, nil, Groups{Generator: {target}}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(target.Vector.Data(), []float32{0.5, -2, 3.25}) {
		t.Errorf("unexpected data: %v", target.Vector.Data())
	}
}

func TestRestoreMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	c := anyvec64.DefaultCreator{}
	path := filepath.Join(t.TempDir(), "model.gob")
	if err := Save(path, Info{Epoch: 1}, Groups{Critic: randomVars(c, rng, 4, 2)}); err != nil {
		t.Fatal(err)
	}
	snap, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]Groups{
		"MissingGroup": {Generator: randomVars(c, rng, 4, 2)},
		"VectorCount":  {Critic: randomVars(c, rng, 4)},
		"VectorLength": {Critic: randomVars(c, rng, 4, 3)},
	}
	for name, groups := range cases {
		before := groups[Critic]
		var data []anyvec.NumericList
		for _, v := range before {
			data = append(data, v.Vector.Data())
		}
		if err := snap.Restore(groups); !errors.Is(err, ErrMismatch) {
			t.Errorf("%s: expected ErrMismatch, got %v", name, err)
		}
		for i, v := range before {
			if !reflect.DeepEqual(data[i], v.Vector.Data()) {
				t.Errorf("%s: vector %d modified", name, i)
			}
		}
	}
}

func TestLoadVocabularyMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	c := anyvec64.DefaultCreator{}
	path := filepath.Join(t.TempDir(), "model.gob")
	words := []string{"<pad>", "<sos>", "<eos>", "<oov>", "cat"}
	if err := Save(path, Info{Words: words}, Groups{Critic: randomVars(c, rng, 3)}); err != nil {
		t.Fatal(err)
	}

	for _, other := range [][]string{
		{"<pad>", "<sos>", "<eos>", "<oov>", "dog"},
		words[:4],
	} {
		target := randomVars(c, rng, 3)
		before := target[0].Vector.Copy().Data()
		if _, err := Load(path, other, Groups{Critic: target}); !errors.Is(err, ErrMismatch) {
			t.Errorf("words %v: expected ErrMismatch, got %v", other, err)
		}
		if !reflect.DeepEqual(before, target[0].Vector.Data()) {
			t.Errorf("words %v: parameters modified", other)
		}
	}
	if _, err := Load(path, words, Groups{Critic: randomVars(c, rng, 3)}); err != nil {
		t.Error(err)
	}
}

func TestPath(t *testing.T) {
	if p := Path("out", 12); p != filepath.Join("out", "model_12.gob") {
		t.Errorf("unexpected path: %s", p)
	}
}
