package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/logger"
)

var rotorNow = time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)

// writeBucket creates root/<date> holding one file of size bytes.
func writeBucket(t *testing.T, root string, day time.Time, size int) string {
	t.Helper()
	name := day.UTC().Format(DayBucketFormat)
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "blob"), make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return name
}

func daysAgo(n int) time.Time { return rotorNow.AddDate(0, 0, -n) }

// TestCandidatesProtection verifies the current day, the retention floor,
// and non-date directories are never candidates, and the rest come back
// oldest first.
func TestCandidatesProtection(t *testing.T) {
	root := t.TempDir()
	for _, n := range []int{0, 1, 2, 3, 4, 5, 6} {
		writeBucket(t, root, daysAgo(n), 10)
	}
	if err := os.MkdirAll(filepath.Join(root, "not-a-date"), 0755); err != nil {
		t.Fatal(err)
	}

	r := NewRotator(root, 1000, 3, logger.Discard())
	r.SetClock(func() time.Time { return rotorNow })

	got, err := r.Candidates()
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	want := []string{
		daysAgo(6).Format(DayBucketFormat),
		daysAgo(5).Format(DayBucketFormat),
		daysAgo(4).Format(DayBucketFormat),
	}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidates = %v, want %v (oldest first)", got, want)
		}
	}
}

// TestRotateNoopBelowTrigger verifies a non-forced rotation does nothing
// under 90% usage.
func TestRotateNoopBelowTrigger(t *testing.T) {
	root := t.TempDir()
	old := writeBucket(t, root, daysAgo(10), 100)

	r := NewRotator(root, 1000, 3, logger.Discard()) // 10% used
	r.SetClock(func() time.Time { return rotorNow })

	if err := r.Rotate(false); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, old)); err != nil {
		t.Fatalf("bucket deleted below trigger: %v", err)
	}
}

// TestRotateStopsAtTarget verifies deletion is oldest-first and stops once
// usage reaches the 80% target.
func TestRotateStopsAtTarget(t *testing.T) {
	root := t.TempDir()
	oldest := writeBucket(t, root, daysAgo(10), 300)
	middle := writeBucket(t, root, daysAgo(9), 300)
	newest := writeBucket(t, root, daysAgo(8), 300)
	today := writeBucket(t, root, daysAgo(0), 300)

	// 1200/1000 used; target is 800. Deleting the two oldest reaches 600.
	r := NewRotator(root, 1000, 3, logger.Discard())
	r.SetClock(func() time.Time { return rotorNow })

	if err := r.Rotate(false); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	for _, gone := range []string{oldest, middle} {
		if _, err := os.Stat(filepath.Join(root, gone)); !os.IsNotExist(err) {
			t.Fatalf("bucket %s should have been deleted", gone)
		}
	}
	for _, kept := range []string{newest, today} {
		if _, err := os.Stat(filepath.Join(root, kept)); err != nil {
			t.Fatalf("bucket %s should have survived: %v", kept, err)
		}
	}
}

// TestRotateForceDeletesAtLeastOne verifies force removes one eligible
// bucket even when usage is already below the target.
func TestRotateForceDeletesAtLeastOne(t *testing.T) {
	root := t.TempDir()
	oldest := writeBucket(t, root, daysAgo(10), 50)
	kept := writeBucket(t, root, daysAgo(9), 50)

	r := NewRotator(root, 1000, 3, logger.Discard()) // 10% used
	r.SetClock(func() time.Time { return rotorNow })

	if err := r.Rotate(true); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, oldest)); !os.IsNotExist(err) {
		t.Fatal("force rotation did not delete the oldest bucket")
	}
	if _, err := os.Stat(filepath.Join(root, kept)); err != nil {
		t.Fatalf("force rotation deleted more than needed: %v", err)
	}
}

// TestRotateForceRespectsRetention verifies even a forced rotation never
// touches buckets inside the retention floor.
func TestRotateForceRespectsRetention(t *testing.T) {
	root := t.TempDir()
	recent := writeBucket(t, root, daysAgo(1), 500)
	today := writeBucket(t, root, daysAgo(0), 500)

	r := NewRotator(root, 1000, 3, logger.Discard()) // 100% used, nothing eligible
	r.SetClock(func() time.Time { return rotorNow })

	if err := r.Rotate(true); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	for _, b := range []string{recent, today} {
		if _, err := os.Stat(filepath.Join(root, b)); err != nil {
			t.Fatalf("protected bucket %s deleted: %v", b, err)
		}
	}
}
