// Package checkpoint saves and restores model parameters.
//
// A checkpoint file is a gob-encoded Snapshot in which
// each parameter vector is stored as little-endian binary
// compressed with flate.
package checkpoint

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Standard group names.
const (
	Autoencoder = "autoencoder"
	Critic      = "critic"
	Generator   = "generator"
)

// ErrMismatch is returned when a checkpoint does not fit
// the variables it is loaded into.
var ErrMismatch = errors.New("checkpoint does not match model")

// Groups maps a group name to its parameters, in a fixed
// order.
type Groups map[string][]*anydiff.Var

// Info is the metadata stored with the parameters.
type Info struct {
	Epoch int

	// Words is the vocabulary, indexed by token id.
	Words []string

	// State is opaque training state, such as optimizer
	// moments.
	State []byte
}

// Snapshot is the serialized form of a checkpoint.
type Snapshot struct {
	Info
	Groups map[string][]Vector
}

// Vector is one compressed parameter vector.
type Vector struct {
	Len     int
	Float32 bool
	Data    []byte
}

// Path returns the file name for an epoch's checkpoint.
func Path(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("model_%d.gob", epoch))
}

// Save writes info and the groups to path.
func Save(path string, info Info, groups Groups) error {
	if err := save(path, info, groups); err != nil {
		return essentials.AddCtx("save checkpoint", err)
	}
	return nil
}

func save(path string, info Info, groups Groups) error {
	snap := &Snapshot{
		Info:   info,
		Groups: map[string][]Vector{},
	}
	for _, name := range groupNames(groups) {
		for _, v := range groups[name] {
			vec, err := compress(v.Vector)
			if err != nil {
				return err
			}
			snap.Groups[name] = append(snap.Groups[name], vec)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a snapshot without restoring it.
func Read(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("read checkpoint", err)
	}
	defer f.Close()
	snap := &Snapshot{}
	if err := gob.NewDecoder(f).Decode(snap); err != nil {
		return nil, essentials.AddCtx("read checkpoint", err)
	}
	return snap, nil
}

// Load reads the checkpoint at path and copies its values
// into groups.
// The saved vocabulary must equal words, and every group
// in groups must be present with matching vector sizes;
// nothing is modified otherwise.
func Load(path string, words []string, groups Groups) (*Snapshot, error) {
	snap, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := snap.CheckWords(words); err != nil {
		return nil, essentials.AddCtx("load checkpoint", err)
	}
	if err := snap.Restore(groups); err != nil {
		return nil, essentials.AddCtx("load checkpoint", err)
	}
	return snap, nil
}

// CheckWords returns an error wrapping ErrMismatch unless
// the snapshot was saved with the vocabulary words.
func (s *Snapshot) CheckWords(words []string) error {
	if len(words) != len(s.Words) {
		return fmt.Errorf("vocabulary has %d words, expected %d: %w", len(s.Words),
			len(words), ErrMismatch)
	}
	for i, w := range words {
		if s.Words[i] != w {
			return fmt.Errorf("word %d is %q, expected %q: %w", i, s.Words[i], w,
				ErrMismatch)
		}
	}
	return nil
}

// Restore copies the snapshot's values into groups.
func (s *Snapshot) Restore(groups Groups) error {
	decoded := map[*anydiff.Var]anyvec.NumericList{}
	for _, name := range groupNames(groups) {
		vars := groups[name]
		saved, ok := s.Groups[name]
		if !ok {
			return fmt.Errorf("group %q: %w", name, ErrMismatch)
		}
		if len(saved) != len(vars) {
			return fmt.Errorf("group %q: %d vectors, expected %d: %w", name, len(saved),
				len(vars), ErrMismatch)
		}
		for i, v := range vars {
			if saved[i].Len != v.Vector.Len() {
				return fmt.Errorf("group %q vector %d: length %d, expected %d: %w", name, i,
					saved[i].Len, v.Vector.Len(), ErrMismatch)
			}
			list, err := saved[i].decompress()
			if err != nil {
				return fmt.Errorf("group %q vector %d: %w", name, i, err)
			}
			decoded[v] = convert(list, v.Vector.Data())
		}
	}
	for v, list := range decoded {
		v.Vector.SetData(list)
	}
	return nil
}

func compress(v anyvec.Vector) (Vector, error) {
	var raw bytes.Buffer
	res := Vector{Len: v.Len()}
	switch data := v.Data().(type) {
	case []float32:
		res.Float32 = true
		if err := binary.Write(&raw, binary.LittleEndian, data); err != nil {
			return res, err
		}
	case []float64:
		if err := binary.Write(&raw, binary.LittleEndian, data); err != nil {
			return res, err
		}
	default:
		return res, fmt.Errorf("unsupported numeric list: %T", data)
	}

	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return res, err
	}
	if _, err := io.Copy(w, &raw); err != nil {
		return res, err
	}
	if err := w.Close(); err != nil {
		return res, err
	}
	res.Data = compressed.Bytes()
	return res, nil
}

func (v Vector) decompress() (anyvec.NumericList, error) {
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, flate.NewReader(bytes.NewReader(v.Data))); err != nil {
		return nil, err
	}
	if v.Float32 {
		res := make([]float32, v.Len)
		if raw.Len() != v.Len*4 {
			return nil, ErrMismatch
		}
		return res, binary.Read(&raw, binary.LittleEndian, res)
	}
	res := make([]float64, v.Len)
	if raw.Len() != v.Len*8 {
		return nil, ErrMismatch
	}
	return res, binary.Read(&raw, binary.LittleEndian, res)
}

// convert casts list to the numeric type of like.
func convert(list, like anyvec.NumericList) anyvec.NumericList {
	switch like.(type) {
	case []float32:
		if l, ok := list.([]float64); ok {
			res := make([]float32, len(l))
			for i, x := range l {
				res[i] = float32(x)
			}
			return res
		}
	case []float64:
		if l, ok := list.([]float32); ok {
			res := make([]float64, len(l))
			for i, x := range l {
				res[i] = float64(x)
			}
			return res
		}
	}
	return list
}

func groupNames(g Groups) []string {
	var names []string
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
