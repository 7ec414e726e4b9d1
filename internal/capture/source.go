package capture

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"vigil/internal/frame"
)

// VideoSource abstracts the raw video transport. The Client owns exactly one
// source at a time and drives its lifecycle.
type VideoSource interface {
	Open(ctx context.Context) error
	// ReadFrame blocks until the next frame arrives or the source fails.
	// Steady-state read timeouts are the transport's concern.
	ReadFrame() (*frame.Frame, error)
	Close() error
}

// FFmpegSource pulls frames from a network stream (RTSP, MJPEG over HTTP)
// by piping it through ffmpeg as an mjpeg image stream and extracting JPEG
// frames from stdout.
type FFmpegSource struct {
	url string
	fps int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    []byte
}

// NewFFmpegSource creates a source for the given stream URL, resampled to
// fps frames per second.
func NewFFmpegSource(url string, fps int) *FFmpegSource {
	if fps < 1 {
		fps = 5
	}
	return &FFmpegSource{url: url, fps: fps}
}

// Open starts the ffmpeg process. It does not wait for a frame; Connect on
// the Client performs the first-frame health check.
func (s *FFmpegSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("source already open")
	}

	args := []string{
		"-rtsp_transport", "tcp",
		"-i", s.url,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-r", fmt.Sprintf("%d", s.fps),
		"-q:v", "5",
		"-",
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	// Drain stderr so ffmpeg never blocks on a full pipe.
	go func() {
		chunk := make([]byte, 4096)
		for {
			if _, err := stderr.Read(chunk); err != nil {
				return
			}
		}
	}()

	s.cmd = cmd
	s.stdout = stdout
	s.buf = s.buf[:0]
	return nil
}

// ReadFrame returns the next decodable frame from the stream.
func (s *FFmpegSource) ReadFrame() (*frame.Frame, error) {
	s.mu.Lock()
	stdout := s.stdout
	s.mu.Unlock()
	if stdout == nil {
		return nil, fmt.Errorf("source not open")
	}

	chunk := make([]byte, 32*1024)
	for {
		if jpg := s.extractJPEG(); jpg != nil {
			f, err := frame.FromJPEG(jpg)
			if err != nil {
				// A torn frame mid-stream; try the next one.
				continue
			}
			return f, nil
		}
		n, err := stdout.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf = append(s.buf, chunk[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}
	}
}

// extractJPEG pulls one complete JPEG (SOI..EOI) out of the buffer.
func (s *FFmpegSource) extractJPEG() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) < 4 {
		return nil
	}
	start := -1
	for i := 0; i < len(s.buf)-1; i++ {
		if s.buf[i] == 0xFF && s.buf[i+1] == 0xD8 {
			start = i
			break
		}
	}
	if start == -1 {
		// No start marker anywhere; keep only the trailing byte in case a
		// marker straddles the chunk boundary.
		s.buf = s.buf[len(s.buf)-1:]
		return nil
	}
	end := -1
	for i := start + 2; i < len(s.buf)-1; i++ {
		if s.buf[i] == 0xFF && s.buf[i+1] == 0xD9 {
			end = i + 2
			break
		}
	}
	if end == -1 {
		return nil
	}
	jpg := make([]byte, end-start)
	copy(jpg, s.buf[start:end])
	s.buf = s.buf[end:]
	return jpg
}

// Close terminates the ffmpeg process. Safe to call when already closed.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	s.buf = nil
	return nil
}
