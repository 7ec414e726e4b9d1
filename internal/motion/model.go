package motion

import "vigil/internal/frame"

// BackgroundModel maintains hidden mutable background state. Update folds a
// frame into the model and returns a foreground mask with one byte per
// pixel (0 background, 1 foreground). The Gate treats the model opaquely so
// a stub can stand in during tests.
type BackgroundModel interface {
	Update(f *frame.Frame) []byte
	Reset()
}

// RunningAverage is a per-pixel grayscale background subtractor. Each pixel
// keeps an exponentially weighted average of its past intensity; a pixel is
// foreground when it deviates from that average by more than pixelDelta.
type RunningAverage struct {
	alpha      float64
	pixelDelta float64
	background []float64
	width      int
	height     int
}

// NewRunningAverage creates a model. alpha is the background update rate in
// (0,1]; pixelDelta is the grayscale deviation that marks a pixel as
// foreground.
func NewRunningAverage(alpha float64, pixelDelta int) *RunningAverage {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.05
	}
	return &RunningAverage{alpha: alpha, pixelDelta: float64(pixelDelta)}
}

func (m *RunningAverage) Update(f *frame.Frame) []byte {
	total := f.Width * f.Height
	mask := make([]byte, total)

	if m.background == nil || m.width != f.Width || m.height != f.Height {
		// First frame (or a resolution change) seeds the background; nothing
		// is foreground yet.
		m.width = f.Width
		m.height = f.Height
		m.background = make([]float64, total)
		for i := 0; i < total; i++ {
			m.background[i] = gray(f.Pix, i*frame.Channels)
		}
		return mask
	}

	for i := 0; i < total; i++ {
		g := gray(f.Pix, i*frame.Channels)
		diff := g - m.background[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > m.pixelDelta {
			mask[i] = 1
		}
		m.background[i] += m.alpha * (g - m.background[i])
	}
	return mask
}

func (m *RunningAverage) Reset() {
	m.background = nil
	m.width = 0
	m.height = 0
}

// gray converts an RGB pixel to luma using integer Rec.601 weights.
func gray(pix []byte, off int) float64 {
	r := int(pix[off])
	g := int(pix[off+1])
	b := int(pix[off+2])
	return float64(299*r+587*g+114*b) / 1000
}
