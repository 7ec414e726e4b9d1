package motion

import "vigil/internal/frame"

// Result is the per-frame motion classification. Confidence is the fraction
// of pixels classified foreground, always in [0,1]. Mask has one byte per
// pixel of the analyzed frame.
type Result struct {
	HasMotion  bool
	Confidence float64
	Mask       []byte
}

// Gate classifies frames as motion/no-motion over a background model. It
// has exactly two states: learning, during which the model is fed but no
// motion is ever reported, and active. The gate is owned by the
// orchestrator thread and needs no locking.
type Gate struct {
	model          BackgroundModel
	threshold      float64
	learningFrames int
	frameCount     int
}

// NewGate creates a gate. threshold is the inclusive motion confidence
// cutoff; the gate stays in learning for the first learningFrames calls.
func NewGate(model BackgroundModel, threshold float64, learningFrames int) *Gate {
	if learningFrames < 1 {
		learningFrames = 1
	}
	return &Gate{
		model:          model,
		threshold:      threshold,
		learningFrames: learningFrames,
	}
}

// Analyze feeds the frame to the background model and classifies it. The
// frame counter increments on every call regardless of outcome.
func (g *Gate) Analyze(f *frame.Frame) Result {
	g.frameCount++
	mask := g.model.Update(f)

	if g.frameCount <= g.learningFrames {
		// Still learning: the model saw the frame, but motion is never
		// reported and the mask is all zeros.
		return Result{Mask: make([]byte, f.Width*f.Height)}
	}

	foreground := 0
	for _, v := range mask {
		if v != 0 {
			foreground++
		}
	}
	confidence := float64(foreground) / float64(len(mask))
	return Result{
		HasMotion:  confidence >= g.threshold,
		Confidence: confidence,
		Mask:       mask,
	}
}

// Learning reports whether the gate is still in its learning phase.
func (g *Gate) Learning() bool {
	return g.frameCount < g.learningFrames
}

// FrameCount returns how many frames the gate has seen.
func (g *Gate) FrameCount() int { return g.frameCount }

// ResetBackground discards the learned model and counter, re-entering
// learning from frame 1. Safe to call at any time, e.g. after the camera
// was repositioned.
func (g *Gate) ResetBackground() {
	g.model.Reset()
	g.frameCount = 0
}
