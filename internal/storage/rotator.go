package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/samber/lo"

	"vigil/internal/logger"
)

// rotateTrigger is the usage fraction above which a non-forced rotation
// actually runs; rotateTarget is the fraction deletion aims for.
const (
	rotateTrigger = 0.9
	rotateTarget  = 0.8
)

// Rotator deletes the oldest day buckets when usage crosses the trigger,
// never touching the current day or anything inside the retention floor.
type Rotator struct {
	root             string
	limitBytes       int64
	minRetentionDays int
	log              *logger.Logger
	now              func() time.Time
}

// NewRotator creates a rotator over the same tree the Monitor watches.
func NewRotator(root string, limitBytes int64, minRetentionDays int, log *logger.Logger) *Rotator {
	return &Rotator{
		root:             root,
		limitBytes:       limitBytes,
		minRetentionDays: minRetentionDays,
		log:              log,
		now:              time.Now,
	}
}

// SetClock overrides the time source. Used in tests.
func (r *Rotator) SetClock(now func() time.Time) { r.now = now }

// Rotate frees space by deleting eligible day buckets oldest-first. When
// not forced it is a no-op unless usage exceeds the 90% trigger. Deletion
// stops once usage drops to the 80% target; a forced rotation always
// removes at least one eligible bucket if any exists. Per-bucket delete
// failures are logged and skipped, they never abort the remaining
// candidates.
func (r *Rotator) Rotate(force bool) error {
	usage := DirSize(r.root)
	if !force && float64(usage) < rotateTrigger*float64(r.limitBytes) {
		return nil
	}

	candidates, err := r.Candidates()
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		r.log.Warn("rotate: nothing eligible to delete (retention floor %d days)", r.minRetentionDays)
		return nil
	}

	target := int64(rotateTarget * float64(r.limitBytes))
	deleted := 0
	for _, bucket := range candidates {
		if usage <= target && !(force && deleted == 0) {
			break
		}
		path := filepath.Join(r.root, bucket)
		size := DirSize(path)
		if err := os.RemoveAll(path); err != nil {
			r.log.Error("rotate: failed to delete %s: %v", path, err)
			size = 0
		} else {
			usage -= size
			deleted++
			r.log.Info("rotate: deleted day bucket %s, freed %d bytes (usage now %d)", bucket, size, usage)
		}
	}
	return nil
}

// Candidates lists the day buckets eligible for deletion, oldest first.
// The current day is always protected, as is any bucket at or inside
// today − minRetentionDays, even under force.
func (r *Rotator) Candidates() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read records dir: %w", err)
	}

	today := r.now().UTC().Truncate(24 * time.Hour)
	floor := today.AddDate(0, 0, -r.minRetentionDays)

	buckets := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if !e.IsDir() {
			return "", false
		}
		day, err := time.Parse(DayBucketFormat, e.Name())
		if err != nil {
			// Not a day bucket; leave it alone.
			return "", false
		}
		if !day.Before(floor) || day.Equal(today) {
			return "", false
		}
		return e.Name(), true
	})

	sort.Strings(buckets) // date-formatted names sort chronologically
	return buckets, nil
}
