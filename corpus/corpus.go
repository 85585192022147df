package corpus

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unixpickle/essentials"
)

// File names looked up by Load.
const (
	TrainFile = "train.txt"
	ValidFile = "valid.txt"
	TestFile  = "test.txt"
)

// Options control how a corpus is tokenized.
type Options struct {
	MaxLen    int
	VocabSize int
	Lowercase bool
}

// A Corpus is a dictionary plus three datasets of token
// id sentences.
// Every sentence ends with EOSID and has at most MaxLen
// tokens.
type Corpus struct {
	Dict  *Dictionary
	Train [][]int
	Valid [][]int
	Test  [][]int
}

// Load reads train.txt, test.txt and, if present,
// valid.txt from dir.
// The dictionary is built from the training split only.
// Without valid.txt, the test split doubles as the
// validation split.
func Load(dir string, opts Options) (*Corpus, error) {
	train, err := readSentences(filepath.Join(dir, TrainFile), opts.Lowercase)
	if err != nil {
		return nil, essentials.AddCtx("load corpus", err)
	}
	test, err := readSentences(filepath.Join(dir, TestFile), opts.Lowercase)
	if err != nil {
		return nil, essentials.AddCtx("load corpus", err)
	}
	valid, err := readSentences(filepath.Join(dir, ValidFile), opts.Lowercase)
	if os.IsNotExist(err) {
		valid = test
	} else if err != nil {
		return nil, essentials.AddCtx("load corpus", err)
	}

	dict := BuildDictionary(train, opts.VocabSize)
	return &Corpus{
		Dict:  dict,
		Train: EncodeAll(dict, train, opts.MaxLen),
		Valid: EncodeAll(dict, valid, opts.MaxLen),
		Test:  EncodeAll(dict, test, opts.MaxLen),
	}, nil
}

// Tokenize splits lines on whitespace, dropping empty
// lines.
func Tokenize(r io.Reader, lowercase bool) ([][]string, error) {
	var res [][]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if lowercase {
			line = strings.ToLower(line)
		}
		if words := strings.Fields(line); len(words) > 0 {
			res = append(res, words)
		}
	}
	return res, scanner.Err()
}

// EncodeAll converts sentences to ids terminated by
// EOSID, truncating them to maxLen tokens.
func EncodeAll(d *Dictionary, sentences [][]string, maxLen int) [][]int {
	res := make([][]int, len(sentences))
	for i, s := range sentences {
		if maxLen > 0 && len(s) > maxLen-1 {
			s = s[:maxLen-1]
		}
		res[i] = append(d.Encode(s), EOSID)
	}
	return res
}

func readSentences(path string, lowercase bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Tokenize(f, lowercase)
}
