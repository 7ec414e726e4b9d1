package detect

import (
	"context"
	"errors"

	"vigil/internal/frame"
)

// ErrUnavailable reports that the detection service (or its acceleration
// runtime) is not reachable. Expected on non-target hardware; the
// orchestrator skips the frame instead of crashing.
var ErrUnavailable = errors.New("detection service unavailable")

// Box is an axis-aligned bounding box in original-frame pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Object is a single labeled detection.
type Object struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Batch is the ordered result of one detection call plus the frame shape it
// was computed against.
type Batch struct {
	Objects     []Object `json:"objects"`
	InferenceMs float64  `json:"inference_ms"`
	FrameWidth  int      `json:"frame_width"`
	FrameHeight int      `json:"frame_height"`
}

// Detector is the external object-detection collaborator contract.
type Detector interface {
	Detect(ctx context.Context, f *frame.Frame) (*Batch, error)
}
