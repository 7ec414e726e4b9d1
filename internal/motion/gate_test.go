package motion

import (
	"testing"

	"vigil/internal/frame"
)

// stubModel returns a canned mask regardless of input.
type stubModel struct {
	mask   []byte
	resets int
}

func (s *stubModel) Update(f *frame.Frame) []byte { return s.mask }
func (s *stubModel) Reset()                       { s.resets++ }

// uniformFrame builds a valid frame filled with a single RGB value.
func uniformFrame(w, h int, r, g, b byte) *frame.Frame {
	pix := make([]byte, w*h*frame.Channels)
	for i := 0; i < w*h; i++ {
		pix[i*3] = r
		pix[i*3+1] = g
		pix[i*3+2] = b
	}
	return &frame.Frame{Width: w, Height: h, Pix: pix}
}

// maskWithForeground builds a mask of n pixels with the first k foreground.
func maskWithForeground(n, k int) []byte {
	mask := make([]byte, n)
	for i := 0; i < k; i++ {
		mask[i] = 1
	}
	return mask
}

// TestGateLearningPhase verifies that no motion is ever reported during the
// first learningFrames calls, even for a fully-foreground mask.
func TestGateLearningPhase(t *testing.T) {
	model := &stubModel{mask: maskWithForeground(100*100, 100*100)}
	gate := NewGate(model, 0.02, 10)
	f := uniformFrame(100, 100, 255, 255, 255)

	for i := 1; i <= 10; i++ {
		res := gate.Analyze(f)
		if res.HasMotion {
			t.Fatalf("frame %d: motion reported during learning phase", i)
		}
		if res.Confidence != 0 {
			t.Fatalf("frame %d: confidence %g during learning, want 0", i, res.Confidence)
		}
		for _, v := range res.Mask {
			if v != 0 {
				t.Fatalf("frame %d: non-zero mask during learning", i)
			}
		}
	}

	// Frame 11 leaves learning and sees the full-foreground mask.
	res := gate.Analyze(f)
	if !res.HasMotion {
		t.Fatal("frame 11: no motion reported after learning phase")
	}
	if res.Confidence != 1.0 {
		t.Fatalf("frame 11: confidence %g, want 1.0", res.Confidence)
	}
}

// TestGateConfidenceFraction checks that confidence is exactly the
// foreground fraction of the mask.
func TestGateConfidenceFraction(t *testing.T) {
	total := 100 * 100
	model := &stubModel{mask: maskWithForeground(total, total/4)}
	gate := NewGate(model, 0.5, 1)
	f := uniformFrame(100, 100, 0, 0, 0)

	gate.Analyze(f) // learning frame
	res := gate.Analyze(f)
	if res.Confidence != 0.25 {
		t.Fatalf("confidence = %g, want 0.25", res.Confidence)
	}
	if res.HasMotion {
		t.Fatal("motion reported at 25%% with threshold 50%%")
	}
}

// TestGateThresholdInclusive verifies the confidence cutoff is >=, not >.
func TestGateThresholdInclusive(t *testing.T) {
	total := 100 * 100
	model := &stubModel{mask: maskWithForeground(total, total/4)}
	gate := NewGate(model, 0.25, 1)
	f := uniformFrame(100, 100, 0, 0, 0)

	gate.Analyze(f)
	res := gate.Analyze(f)
	if !res.HasMotion {
		t.Fatalf("confidence %g equal to threshold must report motion", res.Confidence)
	}
}

// TestGateResetBackground verifies reset re-enters learning from frame 1.
func TestGateResetBackground(t *testing.T) {
	total := 100 * 100
	model := &stubModel{mask: maskWithForeground(total, total)}
	gate := NewGate(model, 0.02, 2)
	f := uniformFrame(100, 100, 0, 0, 0)

	for i := 0; i < 5; i++ {
		gate.Analyze(f)
	}
	if gate.Learning() {
		t.Fatal("gate still learning after 5 frames with learningFrames=2")
	}

	gate.ResetBackground()
	if model.resets != 1 {
		t.Fatalf("model resets = %d, want 1", model.resets)
	}
	if gate.FrameCount() != 0 {
		t.Fatalf("frame count = %d after reset, want 0", gate.FrameCount())
	}
	if res := gate.Analyze(f); res.HasMotion {
		t.Fatal("motion reported on first frame after reset")
	}
}

// TestRunningAverageFirstFrameSeeds verifies the first frame only seeds the
// background and marks nothing foreground.
func TestRunningAverageFirstFrameSeeds(t *testing.T) {
	model := NewRunningAverage(0.05, 25)
	f := uniformFrame(100, 100, 200, 200, 200)

	mask := model.Update(f)
	for i, v := range mask {
		if v != 0 {
			t.Fatalf("pixel %d foreground on seeding frame", i)
		}
	}
}

// TestRunningAverageDetectsChange verifies that a large intensity jump is
// marked foreground while a static scene stays background.
func TestRunningAverageDetectsChange(t *testing.T) {
	model := NewRunningAverage(0.05, 25)
	dark := uniformFrame(100, 100, 10, 10, 10)
	bright := uniformFrame(100, 100, 200, 200, 200)

	model.Update(dark)
	mask := model.Update(dark)
	for i, v := range mask {
		if v != 0 {
			t.Fatalf("pixel %d foreground in static scene", i)
		}
	}

	mask = model.Update(bright)
	for i, v := range mask {
		if v != 1 {
			t.Fatalf("pixel %d not foreground after intensity jump", i)
		}
	}
}

// TestRunningAverageResolutionChange verifies a size change reseeds instead
// of panicking or reporting phantom motion.
func TestRunningAverageResolutionChange(t *testing.T) {
	model := NewRunningAverage(0.05, 25)
	model.Update(uniformFrame(100, 100, 0, 0, 0))

	mask := model.Update(uniformFrame(120, 100, 255, 255, 255))
	if len(mask) != 120*100 {
		t.Fatalf("mask length %d, want %d", len(mask), 120*100)
	}
	for i, v := range mask {
		if v != 0 {
			t.Fatalf("pixel %d foreground on reseeding frame", i)
		}
	}
}
