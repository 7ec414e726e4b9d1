package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/internal/detect"
)

// Event is the durable output unit: one per non-suppressed detection batch.
// Immutable after creation; persistence is the record writers' job.
type Event struct {
	ID               string                 `json:"id"`
	Timestamp        time.Time              `json:"timestamp"` // always UTC
	CameraID         string                 `json:"camera_id"`
	MotionConfidence *float64               `json:"motion_confidence,omitempty"`
	Objects          []detect.Object        `json:"objects"`
	Description      string                 `json:"description"`
	ImagePath        string                 `json:"image_path,omitempty"`
	LogPath          string                 `json:"log_path,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// NewID builds a globally unique event ID that sorts lexicographically by
// creation time: a zero-padded UTC nanosecond prefix plus a short random
// suffix.
func NewID(t time.Time) string {
	return fmt.Sprintf("%020d-%s", t.UTC().UnixNano(), uuid.New().String()[:8])
}
