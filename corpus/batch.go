package corpus

import (
	"fmt"
	"math/rand"
)

// A Batch is a group of right-padded sentences.
//
// Source and Target hold the same token ids; Source is fed
// to the encoder and Target is compared against the
// decoder's predictions.
type Batch struct {
	Source  [][]int
	Target  [][]int
	Lengths []int
}

// Size returns the number of sentences.
func (b *Batch) Size() int {
	return len(b.Source)
}

// Check verifies the batch shape: batchSize rows of
// maxLen tokens, lengths in [1, maxLen], and pad ids
// exactly at positions past each length.
func (b *Batch) Check(batchSize, maxLen int) error {
	if len(b.Source) != batchSize || len(b.Target) != batchSize ||
		len(b.Lengths) != batchSize {
		return fmt.Errorf("batch size mismatch: source=%d target=%d lengths=%d, want %d",
			len(b.Source), len(b.Target), len(b.Lengths), batchSize)
	}
	for i, length := range b.Lengths {
		if length < 1 || length > maxLen {
			return fmt.Errorf("sentence %d: length %d out of range [1, %d]", i, length, maxLen)
		}
		for _, row := range [][]int{b.Source[i], b.Target[i]} {
			if len(row) != maxLen {
				return fmt.Errorf("sentence %d: %d tokens, want %d", i, len(row), maxLen)
			}
			for j, id := range row {
				if (j < length) == (id == PadID) {
					return fmt.Errorf("sentence %d: bad padding at position %d", i, j)
				}
			}
		}
	}
	return nil
}

// Batchify groups sentences into batches of batchSize,
// padding each sentence to maxLen with PadID.
// A trailing partial batch is dropped.
//
// If rng is non-nil, sentences are shuffled first.
func Batchify(data [][]int, batchSize, maxLen int, rng *rand.Rand) []*Batch {
	order := make([]int, len(data))
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	var res []*Batch
	for start := 0; start+batchSize <= len(order); start += batchSize {
		b := &Batch{}
		for _, idx := range order[start : start+batchSize] {
			sent := data[idx]
			if len(sent) > maxLen {
				sent = sent[:maxLen]
			}
			padded := make([]int, maxLen)
			copy(padded, sent)
			b.Source = append(b.Source, padded)
			b.Target = append(b.Target, append([]int{}, padded...))
			b.Lengths = append(b.Lengths, len(sent))
		}
		res = append(res, b)
	}
	return res
}
