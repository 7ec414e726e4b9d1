package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vigil/internal/frame"
	"vigil/internal/logger"
)

// QueueCapacity is the bound on the shared frame queue.
const QueueCapacity = 100

// ConnectionError reports a failed connection attempt with enough context
// for an operator to diagnose it.
type ConnectionError struct {
	CameraID string
	Reason   string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera %s: %s: %v", e.CameraID, e.Reason, e.Err)
	}
	return fmt.Sprintf("camera %s: %s", e.CameraID, e.Reason)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	CameraID               string
	ConnectTimeout         time.Duration
	MaxConsecutiveFailures int
	MaxBackoff             time.Duration
}

// Client presents a reliable "give me the next frame" operation over an
// unreliable video source. A background loop keeps the bounded queue fed
// and reconnects with exponential backoff when the source fails.
type Client struct {
	cameraID string
	source   VideoSource
	queue    *FrameQueue
	log      *logger.Logger

	connectTimeout time.Duration
	maxFailures    int
	backoff        []time.Duration

	mu        sync.Mutex
	connected bool
	seq       uint64

	stopCh  chan struct{}
	done    chan struct{}
	started bool
}

// NewClient wraps the given source.
func NewClient(source VideoSource, opts Options, log *logger.Logger) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.MaxConsecutiveFailures < 1 {
		opts.MaxConsecutiveFailures = 10
	}
	return &Client{
		cameraID:       opts.CameraID,
		source:         source,
		queue:          NewFrameQueue(QueueCapacity),
		log:            log,
		connectTimeout: opts.ConnectTimeout,
		maxFailures:    opts.MaxConsecutiveFailures,
		backoff:        BackoffSchedule(opts.MaxBackoff),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// BackoffSchedule precomputes the doubling reconnect delays starting at 1s
// and capped at max: for max=8s the schedule is [1s 2s 4s 8s].
func BackoffSchedule(max time.Duration) []time.Duration {
	if max < time.Second {
		max = time.Second
	}
	var schedule []time.Duration
	for d := time.Second; ; d *= 2 {
		if d >= max {
			schedule = append(schedule, max)
			break
		}
		schedule = append(schedule, d)
	}
	return schedule
}

// backoffDelay returns the delay for the nth consecutive failure (1-based).
func (c *Client) backoffDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if n > len(c.backoff) {
		n = len(c.backoff)
	}
	return c.backoff[n-1]
}

// Connect opens the source and verifies that at least one valid frame can
// actually be read before declaring success.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	if err := c.source.Open(ctx); err != nil {
		return &ConnectionError{CameraID: c.cameraID, Reason: "failed to open stream", Err: err}
	}

	// The first-frame health check gets its own explicit timeout; the source
	// read has no app-level deadline in steady state.
	f, err := c.readFrameTimeout(c.connectTimeout)
	if err != nil {
		c.source.Close()
		return &ConnectionError{CameraID: c.cameraID, Reason: "stream opened but no frame could be read", Err: err}
	}
	if !f.Valid() {
		c.source.Close()
		return &ConnectionError{
			CameraID: c.cameraID,
			Reason:   fmt.Sprintf("stream delivered a malformed frame (%dx%d)", f.Width, f.Height),
		}
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.log.Info("capture: camera %s connected (%dx%d)", c.cameraID, f.Width, f.Height)
	return nil
}

// readFrameTimeout wraps a single blocking read with an explicit deadline,
// closing the source to unblock the read when the deadline passes.
func (c *Client) readFrameTimeout(timeout time.Duration) (*frame.Frame, error) {
	type result struct {
		f   *frame.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := c.source.ReadFrame()
		ch <- result{f, err}
	}()
	select {
	case r := <-ch:
		return r.f, r.err
	case <-time.After(timeout):
		c.source.Close()
		return nil, fmt.Errorf("timed out after %s", timeout)
	}
}

// GetFrame is a non-blocking best-effort read from the queue. It returns
// (nil, false) when no frame is available; transient failures never surface
// as errors here.
func (c *Client) GetFrame() (*frame.Frame, bool) {
	return c.queue.Pop()
}

// Dropped reports how many frames were discarded because the queue was full.
func (c *Client) Dropped() uint64 { return c.queue.Dropped() }

// Running reports whether the background capture loop is alive. False once
// the loop gave up or was stopped; queued frames remain readable either way.
func (c *Client) Running() bool {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Start launches the background capture loop. Connect must have succeeded.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	go c.captureLoop()
}

func (c *Client) captureLoop() {
	defer close(c.done)
	failures := 0

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		f, err := c.source.ReadFrame()
		if err == nil {
			if !f.Valid() {
				// Malformed frame, treated as no-frame.
				continue
			}
			failures = 0
			c.mu.Lock()
			c.seq++
			f.Seq = c.seq
			c.mu.Unlock()
			if !c.queue.Push(f) {
				c.log.Debug("capture: queue full, dropped frame %d", f.Seq)
			}
			continue
		}

		failures++
		if failures >= c.maxFailures {
			c.log.Error("capture: camera %s giving up after %d consecutive failures: %v",
				c.cameraID, failures, err)
			return
		}

		delay := c.backoffDelay(failures)
		c.log.Warn("capture: camera %s read failed (failure %d/%d): %v; reconnecting in %s",
			c.cameraID, failures, c.maxFailures, err, delay)

		select {
		case <-c.stopCh:
			return
		case <-time.After(delay):
		}

		c.Disconnect()
		if err := c.Connect(context.Background()); err != nil {
			c.log.Warn("capture: camera %s reconnect failed: %v", c.cameraID, err)
			continue
		}
		failures = 0
	}
}

// Stop signals the capture loop and joins it with a bounded timeout. The
// loop must never be left orphaned.
func (c *Client) Stop(timeout time.Duration) error {
	c.mu.Lock()
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	started := c.started
	c.mu.Unlock()

	c.Disconnect()
	if !started {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("capture loop for camera %s did not stop within %s", c.cameraID, timeout)
	}
}

// Disconnect closes the source. Idempotent and safe to call when already
// disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.source.Close()
}

// Connected reports whether the last Connect succeeded and no Disconnect
// happened since.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
