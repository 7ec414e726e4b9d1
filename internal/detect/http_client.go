package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"vigil/internal/frame"
)

// HTTPDetector talks to an object-detection service over HTTP: a multipart
// JPEG POST to /detect returning labeled boxes as JSON.
type HTTPDetector struct {
	endpoint string
	client   *http.Client

	mu          sync.Mutex
	healthy     bool
	lastHealthy time.Time
}

// wireDetection is the service's response shape: bbox is [x1,y1,x2,y2] in
// pixel coordinates.
type wireDetection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

type wireResponse struct {
	Detections      []wireDetection `json:"detections"`
	Count           int             `json:"count"`
	InferenceTimeMs float64         `json:"inference_time_ms"`
	Device          string          `json:"device"`
}

// NewHTTPDetector creates a client for the given service endpoint.
func NewHTTPDetector(endpoint string) *HTTPDetector {
	return &HTTPDetector{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 15 * time.Second, // GPU inference can be slow on first call
		},
	}
}

// Detect sends the frame and returns the resulting batch. Any transport or
// service failure is reported as ErrUnavailable.
func (d *HTTPDetector) Detect(ctx context.Context, f *frame.Frame) (*Batch, error) {
	jpg, err := f.ToJPEG(85)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(jpg); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		d.setHealthy(false)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		d.setHealthy(false)
		return nil, fmt.Errorf("%w: status %s: %s", ErrUnavailable, resp.Status, body)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	d.setHealthy(true)

	batch := &Batch{
		Objects:     make([]Object, 0, len(wire.Detections)),
		InferenceMs: wire.InferenceTimeMs,
		FrameWidth:  f.Width,
		FrameHeight: f.Height,
	}
	for _, det := range wire.Detections {
		if len(det.BBox) != 4 {
			continue
		}
		batch.Objects = append(batch.Objects, Object{
			Label:      det.Class,
			Confidence: det.Confidence,
			Box: Box{
				X:      int(det.BBox[0]),
				Y:      int(det.BBox[1]),
				Width:  int(det.BBox[2] - det.BBox[0]),
				Height: int(det.BBox[3] - det.BBox[1]),
			},
		})
	}
	return batch, nil
}

// IsHealthy probes the service's /health endpoint, caching a positive
// answer for 30 seconds.
func (d *HTTPDetector) IsHealthy(ctx context.Context) bool {
	d.mu.Lock()
	if d.healthy && time.Since(d.lastHealthy) < 30*time.Second {
		d.mu.Unlock()
		return true
	}
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		d.setHealthy(false)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	d.setHealthy(ok)
	return ok
}

func (d *HTTPDetector) setHealthy(ok bool) {
	d.mu.Lock()
	d.healthy = ok
	if ok {
		d.lastHealthy = time.Now()
	}
	d.mu.Unlock()
}
