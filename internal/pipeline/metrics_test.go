package pipeline

import (
	"math"
	"strings"
	"testing"
)

// TestIncrementalMean verifies the running latency average matches the
// arithmetic mean of the observed samples.
func TestIncrementalMean(t *testing.T) {
	var m Metrics
	samples := []float64{10, 20, 30, 100, 40}
	sum := 0.0
	for _, s := range samples {
		m.ObserveDetectorLatency(s)
		sum += s
	}
	want := sum / float64(len(samples))
	if math.Abs(m.DetectorLatencyMs-want) > 1e-9 {
		t.Fatalf("detector avg = %g, want %g", m.DetectorLatencyMs, want)
	}
}

// TestSeparateLatencyStreams verifies the detector and describer averages do
// not share state.
func TestSeparateLatencyStreams(t *testing.T) {
	var m Metrics
	m.ObserveDetectorLatency(10)
	m.ObserveDescriberLatency(1000)
	if m.DetectorLatencyMs != 10 {
		t.Fatalf("detector avg = %g, want 10", m.DetectorLatencyMs)
	}
	if m.DescriberLatencyMs != 1000 {
		t.Fatalf("describer avg = %g, want 1000", m.DescriberLatencyMs)
	}
}

// TestRatesZeroGuard verifies derived rates are zero rather than NaN when no
// frames were seen.
func TestRatesZeroGuard(t *testing.T) {
	var m Metrics
	if r := m.MotionRate(); r != 0 {
		t.Fatalf("motion rate = %g on empty metrics", r)
	}
	if r := m.SamplingEffectiveness(); r != 0 {
		t.Fatalf("sampling effectiveness = %g on empty metrics", r)
	}

	m.FramesCaptured = 200
	m.FramesWithMotion = 50
	m.FramesSampled = 10
	if r := m.MotionRate(); r != 0.25 {
		t.Fatalf("motion rate = %g, want 0.25", r)
	}
	if r := m.SamplingEffectiveness(); r != 0.2 {
		t.Fatalf("sampling effectiveness = %g, want 0.2", r)
	}
}

// TestSummaryContainsCounters sanity-checks the shutdown report format.
func TestSummaryContainsCounters(t *testing.T) {
	m := Metrics{FramesCaptured: 7, EventsCreated: 3}
	s := m.Summary()
	for _, want := range []string{"captured=7", "events=3", "suppressed=0"} {
		if !strings.Contains(s, want) {
			t.Fatalf("summary %q missing %q", s, want)
		}
	}
}
