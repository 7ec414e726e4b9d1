package pipeline

import (
	"context"
	"errors"
	"time"

	"vigil/internal/annotate"
	"vigil/internal/dedup"
	"vigil/internal/describe"
	"vigil/internal/detect"
	"vigil/internal/event"
	"vigil/internal/frame"
	"vigil/internal/logger"
	"vigil/internal/motion"
	"vigil/internal/storage"
)

// ErrStorageExhausted signals that the disk quota is reached and rotation
// could not recover. The process maps it to its own exit code.
var ErrStorageExhausted = errors.New("storage quota exhausted")

// idleSleep bounds CPU burn while the frame queue is empty; the capture
// loop rate-limits production, so polling this often loses nothing.
const idleSleep = 20 * time.Millisecond

// FrameSource is the orchestrator's view of the capture client.
type FrameSource interface {
	GetFrame() (*frame.Frame, bool)
}

// EventStore is the durable event sink (the SQLite collaborator).
type EventStore interface {
	SaveEvent(ev *event.Event) error
}

// Orchestrator is the top-level control loop: it pulls frames, gates on
// motion, samples, detects, deduplicates, describes, and persists events,
// tracking metrics throughout. It runs on the main goroutine and is the
// only caller of every other component.
type Orchestrator struct {
	cameraID  string
	frames    FrameSource
	gate      *motion.Gate
	sampler   *Sampler
	filter    *detect.Filter
	detector  detect.Detector
	describer describe.Describer
	dedup     *dedup.Deduplicator
	writer    *storage.Writer
	store     EventStore
	monitor   *storage.Monitor
	rotator   *storage.Rotator
	log       *logger.Logger

	metrics Metrics
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	CameraID  string
	Frames    FrameSource
	Gate      *motion.Gate
	Sampler   *Sampler
	Filter    *detect.Filter
	Detector  detect.Detector
	Describer describe.Describer
	Dedup     *dedup.Deduplicator
	Writer    *storage.Writer
	Store     EventStore
	Monitor   *storage.Monitor
	Rotator   *storage.Rotator
	Log       *logger.Logger
}

// New wires an orchestrator from its dependencies.
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		cameraID:  d.CameraID,
		frames:    d.Frames,
		gate:      d.Gate,
		sampler:   d.Sampler,
		filter:    d.Filter,
		detector:  d.Detector,
		describer: d.Describer,
		dedup:     d.Dedup,
		writer:    d.Writer,
		store:     d.Store,
		monitor:   d.Monitor,
		rotator:   d.Rotator,
		log:       d.Log,
	}
}

// Metrics returns a copy of the current counters.
func (o *Orchestrator) Metrics() Metrics { return o.metrics }

// Run executes the control loop until ctx is canceled or an unrecoverable
// error occurs. The cancellation check sits at the top of the loop so a
// shutdown signal takes effect within one iteration.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("pipeline: started for camera %s", o.cameraID)
	defer o.log.Info("pipeline: final metrics: %s", o.metrics.Summary())

	for {
		select {
		case <-ctx.Done():
			o.log.Info("pipeline: shutdown requested")
			return nil
		default:
		}

		f, ok := o.frames.GetFrame()
		if !ok {
			// Once the source's capture loop has died and its queue is
			// drained there is nothing left to process.
			if h, ok := o.frames.(interface{ Running() bool }); ok && !h.Running() && ctx.Err() == nil {
				o.log.Error("pipeline: frame source stopped, exiting")
				return errors.New("frame source stopped")
			}
			time.Sleep(idleSleep)
			continue
		}
		o.metrics.FramesCaptured++

		res := o.gate.Analyze(f)
		if !res.HasMotion {
			continue
		}
		o.metrics.FramesWithMotion++

		if !o.sampler.ShouldProcess(o.metrics.FramesWithMotion) {
			continue
		}
		o.metrics.FramesSampled++

		if err := o.processFrame(ctx, f, res); err != nil {
			if errors.Is(err, ErrStorageExhausted) {
				return err
			}
			// Collaborator failures degrade, they never kill the loop.
			o.log.Warn("pipeline: frame %d skipped: %v", f.Seq, err)
		}
	}
}

// processFrame runs detection through persistence for one sampled frame.
func (o *Orchestrator) processFrame(ctx context.Context, f *frame.Frame, res motion.Result) error {
	start := time.Now()
	batch, err := o.detector.Detect(ctx, f)
	if err != nil {
		return err
	}
	o.metrics.FramesProcessed++
	o.metrics.ObserveDetectorLatency(float64(time.Since(start).Microseconds()) / 1000)

	batch = o.filter.Apply(batch)
	if len(batch.Objects) == 0 {
		return nil
	}
	o.metrics.ObjectsDetected += uint64(len(batch.Objects))

	if !o.dedup.ShouldCreateEvent(batch) {
		o.metrics.EventsSuppressed++
		o.log.Debug("pipeline: suppressed duplicate event for frame %d", f.Seq)
		return nil
	}

	ev := o.buildEvent(ctx, f, res, batch)
	o.persist(ev, f, batch)
	o.metrics.EventsCreated++
	o.log.Info("pipeline: event %s created (%d objects): %s", ev.ID, len(ev.Objects), ev.Description)

	if o.monitor != nil && o.monitor.Enforce(o.rotator) {
		return ErrStorageExhausted
	}
	return nil
}

// buildEvent assembles the event record, falling back to a deterministic
// description when the describer collaborator fails.
func (o *Orchestrator) buildEvent(ctx context.Context, f *frame.Frame, res motion.Result, batch *detect.Batch) *event.Event {
	start := time.Now()
	description, err := o.describer.Describe(ctx, f, batch)
	if err != nil {
		o.log.Warn("pipeline: describer failed, using fallback: %v", err)
		description = describe.Fallback(batch)
	} else {
		o.metrics.ObserveDescriberLatency(float64(time.Since(start).Microseconds()) / 1000)
	}

	now := time.Now().UTC()
	conf := res.Confidence
	ev := &event.Event{
		ID:               event.NewID(now),
		Timestamp:        now,
		CameraID:         o.cameraID,
		MotionConfidence: &conf,
		Objects:          batch.Objects,
		Description:      description,
		Metadata: map[string]interface{}{
			"frame_seq":    f.Seq,
			"inference_ms": batch.InferenceMs,
		},
	}
	if primary, ok := dedup.PrimaryEntity(batch); ok {
		ev.Metadata["primary_label"] = primary.Label
	}
	return ev
}

// persist hands the event to the record-writer collaborators. Each writer
// failure is logged and the rest still run; losing one sink does not void
// the event.
func (o *Orchestrator) persist(ev *event.Event, f *frame.Frame, batch *detect.Batch) {
	if o.writer != nil {
		annotated, err := annotate.Render(f, batch.Objects)
		if err != nil {
			o.log.Warn("pipeline: annotation failed for event %s: %v", ev.ID, err)
		} else if path, err := o.writer.WriteImage(ev, annotated); err != nil {
			o.log.Warn("pipeline: image write failed for event %s: %v", ev.ID, err)
		} else {
			ev.ImagePath = path
		}

		if path, err := o.writer.AppendLog(ev); err != nil {
			o.log.Warn("pipeline: log append failed for event %s: %v", ev.ID, err)
		} else {
			ev.LogPath = path
		}

		if _, err := o.writer.WriteRecord(ev); err != nil {
			o.log.Warn("pipeline: record write failed for event %s: %v", ev.ID, err)
		}
	}

	if o.store != nil {
		if err := o.store.SaveEvent(ev); err != nil {
			o.log.Warn("pipeline: database save failed for event %s: %v", ev.ID, err)
		}
	}
}
