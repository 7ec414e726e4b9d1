package detect

import "strings"

// Filter drops detections below a confidence floor or carrying a
// blacklisted label. Blacklist matching is case-insensitive and whole-word:
// blacklisting "cat" removes "cat" and "domestic cat" but never "cattle".
type Filter struct {
	confidenceFloor float64
	blacklist       []string
}

// NewFilter creates a filter. The blacklist entries are normalized once.
func NewFilter(confidenceFloor float64, blacklist []string) *Filter {
	normalized := make([]string, 0, len(blacklist))
	for _, b := range blacklist {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			normalized = append(normalized, b)
		}
	}
	return &Filter{confidenceFloor: confidenceFloor, blacklist: normalized}
}

// Apply returns a new batch containing only the objects that pass the
// filter, preserving order. The input batch is not modified.
func (f *Filter) Apply(batch *Batch) *Batch {
	out := &Batch{
		Objects:     make([]Object, 0, len(batch.Objects)),
		InferenceMs: batch.InferenceMs,
		FrameWidth:  batch.FrameWidth,
		FrameHeight: batch.FrameHeight,
	}
	for _, obj := range batch.Objects {
		if obj.Confidence < f.confidenceFloor {
			continue
		}
		if f.blacklisted(obj.Label) {
			continue
		}
		out.Objects = append(out.Objects, obj)
	}
	return out
}

// blacklisted reports whether any whole word of the label matches a
// blacklist entry.
func (f *Filter) blacklisted(label string) bool {
	if len(f.blacklist) == 0 {
		return false
	}
	words := strings.Fields(strings.ToLower(label))
	for _, entry := range f.blacklist {
		for _, w := range words {
			if w == entry {
				return true
			}
		}
	}
	return false
}
