package corpus

import (
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestBuildDictionary(t *testing.T) {
	sents := [][]string{
		{"the", "cat", "sat"},
		{"the", "dog", "sat"},
		{"the", "end"},
	}
	d := BuildDictionary(sents, 2)
	if d.Len() != 6 {
		t.Fatalf("expected 6 tokens, got %d", d.Len())
	}
	if d.IDToWord[PadID] != "<pad>" || d.IDToWord[EOSID] != "<eos>" {
		t.Errorf("bad reserved tokens: %v", d.IDToWord[:4])
	}
	if d.WordToID["the"] != 4 || d.WordToID["sat"] != 5 {
		t.Errorf("unexpected order: %v", d.IDToWord)
	}
	ids := d.Encode([]string{"the", "cat"})
	if !reflect.DeepEqual(ids, []int{4, OOVID}) {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestDecode(t *testing.T) {
	d := BuildDictionary([][]string{{"a", "b"}}, 0)
	a, b := d.WordToID["a"], d.WordToID["b"]
	text := d.Decode([]int{SOSID, a, PadID, b, EOSID, a})
	if text != "a b" {
		t.Errorf("unexpected text: %q", text)
	}
	if out := d.Render([][]int{{b}, {999}}); out[0] != "b" || out[1] != "<oov>" {
		t.Errorf("unexpected render: %v", out)
	}
}

func TestEncodeAllTruncates(t *testing.T) {
	d := BuildDictionary([][]string{{"a", "b", "c", "d"}}, 0)
	res := EncodeAll(d, [][]string{{"a", "b", "c", "d"}, {"a"}}, 3)
	if len(res[0]) != 3 || res[0][2] != EOSID {
		t.Errorf("bad truncation: %v", res[0])
	}
	if len(res[1]) != 2 || res[1][1] != EOSID {
		t.Errorf("bad short sentence: %v", res[1])
	}
}

func TestBatchify(t *testing.T) {
	data := [][]int{{4, 2}, {5, 6, 2}, {7, 2}, {8, 2}, {9, 2}}
	batches := Batchify(data, 2, 4, nil)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	b := batches[0]
	if !reflect.DeepEqual(b.Source[1], []int{5, 6, 2, 0}) {
		t.Errorf("bad padding: %v", b.Source[1])
	}
	if !reflect.DeepEqual(b.Lengths, []int{2, 3}) {
		t.Errorf("bad lengths: %v", b.Lengths)
	}
	if err := b.Check(2, 4); err != nil {
		t.Error(err)
	}
	b.Target[0][0] = 0
	if err := b.Check(2, 4); err == nil {
		t.Error("expected padding error")
	}
	if err := batches[1].Check(3, 4); err == nil {
		t.Error("expected size error")
	}

	shuffled := Batchify(data, 5, 4, rand.New(rand.NewSource(3)))
	if len(shuffled) != 1 || shuffled[0].Check(5, 4) != nil {
		t.Error("bad shuffled batch")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(TrainFile, "The cat sat\n\nthe dog ran\n")
	write(TestFile, "the bird sat\n")

	c, err := Load(dir, Options{MaxLen: 5, VocabSize: 100, Lowercase: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Train) != 2 || len(c.Test) != 1 {
		t.Fatalf("unexpected split sizes: %d %d", len(c.Train), len(c.Test))
	}
	if !reflect.DeepEqual(c.Valid, c.Test) {
		t.Error("valid split should fall back to test")
	}
	if got := c.Dict.Decode(c.Test[0]); got != "the <oov> sat" {
		t.Errorf("unexpected test sentence: %q", got)
	}

	if _, err := Load(t.TempDir(), Options{}); err == nil {
		t.Error("expected error for missing files")
	}
}

func TestTokenize(t *testing.T) {
	res, err := Tokenize(strings.NewReader("A b\n  \nc\n"), true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res, [][]string{{"a", "b"}, {"c"}}) {
		t.Errorf("unexpected tokens: %v", res)
	}
}
