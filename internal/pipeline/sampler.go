package pipeline

// Sampler throttles the already-motion-filtered frame stream: a frame is
// selected when the running count of motion-positive frames is a multiple
// of the configured rate. Rate 1 selects every motion frame.
type Sampler struct {
	rate uint64
}

// NewSampler creates a sampler with the given rate (minimum 1).
func NewSampler(rate int) *Sampler {
	if rate < 1 {
		rate = 1
	}
	return &Sampler{rate: uint64(rate)}
}

// ShouldProcess reports whether the nth motion-positive frame is selected.
func (s *Sampler) ShouldProcess(n uint64) bool {
	return n%s.rate == 0
}
