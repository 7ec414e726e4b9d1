package describe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vigil/internal/detect"
	"vigil/internal/frame"
)

// ErrTimeout reports that the description service did not answer in time.
var ErrTimeout = errors.New("description service timed out")

// ErrConnection reports that the description service could not be reached.
var ErrConnection = errors.New("description service unreachable")

// Describer is the external vision-language collaborator contract.
type Describer interface {
	Describe(ctx context.Context, f *frame.Frame, batch *detect.Batch) (string, error)
}

// OllamaDescriber generates scene descriptions through an Ollama-compatible
// /api/generate endpoint using a vision-language model.
type OllamaDescriber struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaDescriber creates a describer with the given request timeout.
func NewOllamaDescriber(endpoint, model string, timeout time.Duration) *OllamaDescriber {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaDescriber{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

// Describe sends the frame plus the detected labels and returns the model's
// text. Failures are classified as ErrTimeout or ErrConnection so the
// caller can substitute a fallback rather than failing the event.
func (d *OllamaDescriber) Describe(ctx context.Context, f *frame.Frame, batch *detect.Batch) (string, error) {
	jpg, err := f.ToJPEG(85)
	if err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}

	prompt := "Briefly describe what is happening in this security camera image."
	if labels := labelList(batch); labels != "" {
		prompt = fmt.Sprintf(
			"Briefly describe what is happening in this security camera image. Detected objects: %s.", labels)
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":  d.model,
		"prompt": prompt,
		"images": []string{base64.StdEncoding.EncodeToString(jpg)},
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: status %s: %s", ErrConnection, resp.Status, msg)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrConnection, err)
	}
	return strings.TrimSpace(result.Response), nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Fallback builds a deterministic description from the detected labels,
// used when the description service is unavailable.
func Fallback(batch *detect.Batch) string {
	return "Detected: " + labelList(batch)
}

func labelList(batch *detect.Batch) string {
	if batch == nil || len(batch.Objects) == 0 {
		return ""
	}
	labels := make([]string, len(batch.Objects))
	for i, obj := range batch.Objects {
		labels[i] = obj.Label
	}
	return strings.Join(labels, ", ")
}
