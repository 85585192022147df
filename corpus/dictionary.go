// Package corpus loads whitespace-tokenized text, builds a
// vocabulary, and groups sentences into padded batches.
package corpus

import (
	"sort"
	"strings"
)

// Reserved token ids.
const (
	PadID = iota
	SOSID
	EOSID
	OOVID
)

var reservedWords = []string{"<pad>", "<sos>", "<eos>", "<oov>"}

// A Dictionary maps words to token ids and back.
type Dictionary struct {
	WordToID map[string]int
	IDToWord []string
}

// NewDictionary creates a Dictionary containing only the
// reserved tokens.
func NewDictionary() *Dictionary {
	d := &Dictionary{WordToID: map[string]int{}}
	for _, w := range reservedWords {
		d.add(w)
	}
	return d
}

// BuildDictionary creates a Dictionary from tokenized
// sentences, keeping the vocabSize most frequent words.
// Ties are broken alphabetically so the result does not
// depend on map iteration order.
func BuildDictionary(sentences [][]string, vocabSize int) *Dictionary {
	counts := map[string]int{}
	for _, s := range sentences {
		for _, w := range s {
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		if _, reserved := indexOf(reservedWords, w); !reserved {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if vocabSize > 0 && len(words) > vocabSize {
		words = words[:vocabSize]
	}
	d := NewDictionary()
	for _, w := range words {
		d.add(w)
	}
	return d
}

// Len returns the number of tokens, including reserved
// ones.
func (d *Dictionary) Len() int {
	return len(d.IDToWord)
}

// Encode converts words to ids, mapping unknown words to
// OOVID.
func (d *Dictionary) Encode(words []string) []int {
	res := make([]int, len(words))
	for i, w := range words {
		if id, ok := d.WordToID[w]; ok {
			res[i] = id
		} else {
			res[i] = OOVID
		}
	}
	return res
}

// Decode renders ids as text.
// Decoding stops at the first EOSID; pad and start tokens
// are skipped.
func (d *Dictionary) Decode(ids []int) string {
	var words []string
	for _, id := range ids {
		if id == EOSID {
			break
		} else if id == PadID || id == SOSID {
			continue
		}
		if id < 0 || id >= len(d.IDToWord) {
			words = append(words, reservedWords[OOVID])
		} else {
			words = append(words, d.IDToWord[id])
		}
	}
	return strings.Join(words, " ")
}

// Render decodes a batch of token sequences.
func (d *Dictionary) Render(batch [][]int) []string {
	res := make([]string, len(batch))
	for i, ids := range batch {
		res[i] = d.Decode(ids)
	}
	return res
}

func (d *Dictionary) add(w string) {
	d.WordToID[w] = len(d.IDToWord)
	d.IDToWord = append(d.IDToWord, w)
}

func indexOf(list []string, s string) (int, bool) {
	for i, x := range list {
		if x == s {
			return i, true
		}
	}
	return -1, false
}
