package pipeline

import "fmt"

// Metrics holds the pipeline's monotonically increasing counters and
// latency running averages. Owned exclusively by the orchestrator thread;
// reset only at process start.
type Metrics struct {
	FramesCaptured   uint64
	FramesWithMotion uint64
	FramesSampled    uint64
	FramesProcessed  uint64
	ObjectsDetected  uint64
	EventsCreated    uint64
	EventsSuppressed uint64

	DetectorLatencyMs  float64
	DescriberLatencyMs float64
	detectorSamples    uint64
	describerSamples   uint64
}

// ObserveDetectorLatency folds one detector call duration into the running
// average (incremental mean).
func (m *Metrics) ObserveDetectorLatency(ms float64) {
	m.detectorSamples++
	m.DetectorLatencyMs += (ms - m.DetectorLatencyMs) / float64(m.detectorSamples)
}

// ObserveDescriberLatency folds one describer call duration into the
// running average.
func (m *Metrics) ObserveDescriberLatency(ms float64) {
	m.describerSamples++
	m.DescriberLatencyMs += (ms - m.DescriberLatencyMs) / float64(m.describerSamples)
}

// MotionRate returns motion frames / captured frames, zero when nothing was
// captured.
func (m *Metrics) MotionRate() float64 {
	if m.FramesCaptured == 0 {
		return 0
	}
	return float64(m.FramesWithMotion) / float64(m.FramesCaptured)
}

// SamplingEffectiveness returns sampled frames / motion frames, zero when
// no motion was seen.
func (m *Metrics) SamplingEffectiveness() float64 {
	if m.FramesWithMotion == 0 {
		return 0
	}
	return float64(m.FramesSampled) / float64(m.FramesWithMotion)
}

// Summary renders a single-line report for the shutdown log.
func (m *Metrics) Summary() string {
	return fmt.Sprintf(
		"captured=%d motion=%d sampled=%d processed=%d objects=%d events=%d suppressed=%d "+
			"motion_rate=%.3f sampling=%.3f detector_avg_ms=%.1f describer_avg_ms=%.1f",
		m.FramesCaptured, m.FramesWithMotion, m.FramesSampled, m.FramesProcessed,
		m.ObjectsDetected, m.EventsCreated, m.EventsSuppressed,
		m.MotionRate(), m.SamplingEffectiveness(),
		m.DetectorLatencyMs, m.DescriberLatencyMs)
}
