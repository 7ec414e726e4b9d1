package pipeline

import "testing"

// TestSamplerRateOne verifies rate 1 processes every frame.
func TestSamplerRateOne(t *testing.T) {
	s := NewSampler(1)
	for n := uint64(1); n <= 20; n++ {
		if !s.ShouldProcess(n) {
			t.Fatalf("rate 1 skipped frame %d", n)
		}
	}
}

// TestSamplerModulo checks the n mod rate == 0 rule across several rates.
func TestSamplerModulo(t *testing.T) {
	for _, rate := range []int{2, 3, 5, 10, 30} {
		s := NewSampler(rate)
		processed := 0
		for n := uint64(1); n <= 150; n++ {
			got := s.ShouldProcess(n)
			want := n%uint64(rate) == 0
			if got != want {
				t.Fatalf("rate %d frame %d: got %v, want %v", rate, n, got, want)
			}
			if got {
				processed++
			}
		}
		if processed != 150/rate {
			t.Fatalf("rate %d: processed %d of 150, want %d", rate, processed, 150/rate)
		}
	}
}

// TestSamplerInvalidRate verifies a non-positive rate is coerced to 1.
func TestSamplerInvalidRate(t *testing.T) {
	for _, rate := range []int{0, -3} {
		s := NewSampler(rate)
		if !s.ShouldProcess(1) {
			t.Fatalf("rate %d did not coerce to process-everything", rate)
		}
	}
}
