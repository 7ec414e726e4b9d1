package storage

import (
	"io/fs"
	"os"
	"path/filepath"

	"vigil/internal/logger"
)

// Snapshot is a point-in-time view of disk usage against the quota. It is
// computed on demand and never cached.
type Snapshot struct {
	UsedBytes    int64
	LimitBytes   int64
	UsedFraction float64
	OverLimit    bool
}

// Monitor enforces the disk quota over the retained-records tree. The
// directory walk is relatively expensive, so enforcement only fires every
// checkInterval events.
type Monitor struct {
	root          string
	limitBytes    int64
	checkInterval int
	counter       int
	log           *logger.Logger
}

// NewMonitor creates a monitor. maxGB is the quota in gigabytes.
func NewMonitor(root string, maxGB float64, checkInterval int, log *logger.Logger) *Monitor {
	if checkInterval < 1 {
		checkInterval = 1
	}
	return &Monitor{
		root:          root,
		limitBytes:    int64(maxGB * float64(1<<30)),
		checkInterval: checkInterval,
		log:           log,
	}
}

// LimitBytes returns the configured quota in bytes.
func (m *Monitor) LimitBytes() int64 { return m.limitBytes }

// CheckUsage walks the records tree and returns a fresh snapshot.
func (m *Monitor) CheckUsage() Snapshot {
	used := DirSize(m.root)
	frac := 0.0
	if m.limitBytes > 0 {
		frac = float64(used) / float64(m.limitBytes)
	}
	return Snapshot{
		UsedBytes:    used,
		LimitBytes:   m.limitBytes,
		UsedFraction: frac,
		OverLimit:    frac >= 1.0,
	}
}

// Enforce is called once per persisted event. It increments the internal
// counter and only performs the directory walk when the counter reaches the
// check interval. It returns true when the process must shut down because
// storage is exhausted and rotation could not recover.
func (m *Monitor) Enforce(rotator *Rotator) bool {
	m.counter++
	if m.counter < m.checkInterval {
		return false
	}
	m.counter = 0

	snap := m.CheckUsage()
	switch {
	case snap.UsedFraction >= 1.0:
		m.log.Error("storage: usage %.1f%% of %d bytes - limit reached, requesting shutdown",
			snap.UsedFraction*100, snap.LimitBytes)
		return true

	case snap.UsedFraction >= 0.9:
		m.log.Warn("storage: usage %.1f%% - rotating old day buckets", snap.UsedFraction*100)
		if err := rotator.Rotate(false); err != nil {
			m.log.Error("storage: rotation failed: %v", err)
		}
		after := m.CheckUsage()
		if after.OverLimit {
			m.log.Error("storage: still at %.1f%% after rotation, requesting shutdown",
				after.UsedFraction*100)
			return true
		}
		return false

	case snap.UsedFraction >= 0.8:
		m.log.Warn("storage: usage %.1f%% of limit", snap.UsedFraction*100)
		return false

	default:
		m.log.Debug("storage: usage %.1f%% of limit", snap.UsedFraction*100)
		return false
	}
}

// DirSize recursively sums the file sizes under dir. Unreadable entries
// count as zero.
func DirSize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
