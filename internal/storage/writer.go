package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vigil/internal/event"
)

// DayBucketFormat names the per-day record directories.
const DayBucketFormat = "2006-01-02"

// Writer persists event records into day-bucketed directories under root.
// Every write is atomic: the data lands in a temp file in the destination
// directory and is renamed over the target, so a crash never leaves a
// partial record visible.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// bucketDir returns (and creates) the day bucket for t.
func (w *Writer) bucketDir(t time.Time) (string, error) {
	dir := filepath.Join(w.root, t.UTC().Format(DayBucketFormat))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create day bucket: %w", err)
	}
	return dir, nil
}

// WriteImage stores the annotated JPEG for ev and returns its path.
func (w *Writer) WriteImage(ev *event.Event, jpg []byte) (string, error) {
	dir, err := w.bucketDir(ev.Timestamp)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ev.ID+".jpg")
	if err := atomicWrite(path, jpg); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

// WriteRecord stores the full event as a JSON document and returns its path.
func (w *Writer) WriteRecord(ev *event.Event) (string, error) {
	dir, err := w.bucketDir(ev.Timestamp)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	path := filepath.Join(dir, ev.ID+".json")
	if err := atomicWrite(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return path, nil
}

// AppendLog appends a one-line plaintext summary of ev to the day's
// events.log and returns the log path. The whole file is rewritten through
// a temp file so the append either fully lands or is fully absent.
func (w *Writer) AppendLog(ev *event.Event) (string, error) {
	dir, err := w.bucketDir(ev.Timestamp)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "events.log")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read log: %w", err)
	}

	line := fmt.Sprintf("%s %s camera=%s objects=%d description=%q\n",
		ev.Timestamp.UTC().Format(time.RFC3339), ev.ID, ev.CameraID, len(ev.Objects), ev.Description)

	if err := atomicWrite(path, append(existing, line...)); err != nil {
		return "", fmt.Errorf("write log: %w", err)
	}
	return path, nil
}

// atomicWrite writes data to a temp file in the same directory as path and
// renames it over the target.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
