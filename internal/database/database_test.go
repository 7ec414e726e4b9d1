package database

import (
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/detect"
	"vigil/internal/event"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "vigil.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func savedEvent(ts time.Time, cameraID string) *event.Event {
	conf := 0.12
	return &event.Event{
		ID:               event.NewID(ts),
		Timestamp:        ts,
		CameraID:         cameraID,
		MotionConfidence: &conf,
		Objects: []detect.Object{
			{Label: "person", Confidence: 0.91, Box: detect.Box{X: 5, Y: 10, Width: 50, Height: 120}},
		},
		Description: "a person near the gate",
		ImagePath:   "/data/2026-08-31/x.jpg",
		Metadata:    map[string]interface{}{"frame_seq": float64(42)},
	}
}

// TestSaveAndGetEvent round-trips one event including objects and metadata.
func TestSaveAndGetEvent(t *testing.T) {
	db := openTestDB(t)
	ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ev := savedEvent(ts, "cam-01")

	if err := db.SaveEvent(ev); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}

	got, err := db.GetEvent(ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.CameraID != "cam-01" || got.Description != ev.Description {
		t.Fatalf("got %+v", got)
	}
	if got.MotionConfidence == nil || *got.MotionConfidence != 0.12 {
		t.Fatalf("motion confidence = %v", got.MotionConfidence)
	}
	if len(got.Objects) != 1 || got.Objects[0].Label != "person" {
		t.Fatalf("objects = %+v", got.Objects)
	}
	if got.Objects[0].Box.Width != 50 {
		t.Fatalf("box = %+v", got.Objects[0].Box)
	}
	if got.Metadata["frame_seq"] != float64(42) {
		t.Fatalf("metadata = %v", got.Metadata)
	}
}

// TestGetEventMissing reports an error for unknown IDs.
func TestGetEventMissing(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetEvent("no-such-id"); err == nil {
		t.Fatal("unknown id returned no error")
	}
}

// TestSaveEventDuplicateID rejects a second insert with the same ID.
func TestSaveEventDuplicateID(t *testing.T) {
	db := openTestDB(t)
	ev := savedEvent(time.Now().UTC(), "cam-01")
	if err := db.SaveEvent(ev); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}
	if err := db.SaveEvent(ev); err == nil {
		t.Fatal("duplicate ID accepted")
	}
}

// TestListEventsFiltering verifies camera, time-bound, and limit filters
// with newest-first ordering.
func TestListEventsFiltering(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := db.SaveEvent(savedEvent(base.Add(time.Duration(i)*time.Hour), "cam-01")); err != nil {
			t.Fatalf("SaveEvent: %v", err)
		}
	}
	if err := db.SaveEvent(savedEvent(base, "cam-02")); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}

	all, err := db.ListEvents("", nil, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("all events = %d, want 6", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Fatal("events not newest-first")
		}
	}

	byCamera, err := db.ListEvents("cam-02", nil, 0)
	if err != nil {
		t.Fatalf("ListEvents camera: %v", err)
	}
	if len(byCamera) != 1 {
		t.Fatalf("cam-02 events = %d, want 1", len(byCamera))
	}

	since := base.Add(3 * time.Hour)
	recent, err := db.ListEvents("cam-01", &since, 0)
	if err != nil {
		t.Fatalf("ListEvents since: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent events = %d, want 2", len(recent))
	}

	limited, err := db.ListEvents("", nil, 3)
	if err != nil {
		t.Fatalf("ListEvents limit: %v", err)
	}
	if len(limited) != 3 {
		t.Fatalf("limited events = %d, want 3", len(limited))
	}
}
