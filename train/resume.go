package train

import (
	"bytes"
	"encoding/gob"

	"github.com/unixpickle/essentials"
)

type savedState struct {
	State     State
	Critic    []byte
	Generator []byte
}

// MarshalBinary encodes State and the critic and
// generator optimizer moments.
// Model weights are not included.
func (t *Trainer) MarshalBinary() ([]byte, error) {
	saved := savedState{State: t.State}
	var err error
	if saved.Critic, err = t.criticOpt.MarshalBinary(); err != nil {
		return nil, essentials.AddCtx("marshal trainer", err)
	}
	if saved.Generator, err = t.genOpt.MarshalBinary(); err != nil {
		return nil, essentials.AddCtx("marshal trainer", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&saved); err != nil {
		return nil, essentials.AddCtx("marshal trainer", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores data from MarshalBinary, so
// that Run continues after the saved epoch with the saved
// noise radius, GAN iterations and optimizer moments.
func (t *Trainer) UnmarshalBinary(data []byte) error {
	var saved savedState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&saved); err != nil {
		return essentials.AddCtx("unmarshal trainer", err)
	}
	if err := t.criticOpt.UnmarshalBinary(saved.Critic); err != nil {
		return essentials.AddCtx("unmarshal trainer", err)
	}
	if err := t.genOpt.UnmarshalBinary(saved.Generator); err != nil {
		return essentials.AddCtx("unmarshal trainer", err)
	}
	t.State = saved.State
	return nil
}
