package train

import "math"

// State is the mutable training state shared between
// steps.
// Only the Trainer writes it.
type State struct {
	Epoch      int
	GlobalStep int

	// NoiseRadius is the standard deviation of the noise
	// added to latent codes in reconstruction steps.
	NoiseRadius float64

	// GanIters is the number of GAN rounds run after each
	// group of autoencoder steps.
	GanIters int

	BestLoss float64
	BadEvals int
}

// NewState creates the initial state.
func NewState(noiseRadius float64) State {
	return State{
		NoiseRadius: noiseRadius,
		GanIters:    1,
		BestLoss:    math.Inf(1),
	}
}

// BeginEpoch records the epoch number and increments
// GanIters if the epoch is listed in schedule.
// It reports whether GanIters changed.
func (s *State) BeginEpoch(epoch int, schedule []int) bool {
	s.Epoch = epoch
	for _, e := range schedule {
		if e == epoch {
			s.GanIters++
			return true
		}
	}
	return false
}

// Tick advances the global step.
// Every interval steps the noise radius is multiplied by
// anneal and Tick returns true.
func (s *State) Tick(interval int, anneal float64) bool {
	s.GlobalStep++
	if s.GlobalStep%interval != 0 {
		return false
	}
	s.NoiseRadius *= anneal
	return true
}

// Observe records a validation loss and reports whether
// it improved on the best loss so far.
func (s *State) Observe(loss float64) bool {
	if loss < s.BestLoss {
		s.BestLoss = loss
		s.BadEvals = 0
		return true
	}
	s.BadEvals++
	return false
}
