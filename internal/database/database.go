package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"vigil/internal/detect"
	"vigil/internal/event"
)

// Database persists events in SQLite. It is one of the record-writer
// collaborators the orchestrator invokes but does not own.
type Database struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			motion_confidence REAL,
			objects TEXT,
			description TEXT,
			image_path TEXT,
			log_path TEXT,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_camera_time ON events(camera_id, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_time ON events(timestamp DESC)`,
	}
	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveEvent inserts one event record.
func (d *Database) SaveEvent(ev *event.Event) error {
	objects, err := json.Marshal(ev.Objects)
	if err != nil {
		return fmt.Errorf("marshal objects: %w", err)
	}
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = d.db.Exec(`INSERT INTO events
		(id, camera_id, timestamp, motion_confidence, objects, description, image_path, log_path, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CameraID, ev.Timestamp.UTC(), ev.MotionConfidence,
		string(objects), ev.Description, ev.ImagePath, ev.LogPath, string(metadata))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event by ID.
func (d *Database) GetEvent(id string) (*event.Event, error) {
	row := d.db.QueryRow(`SELECT id, camera_id, timestamp, motion_confidence,
		objects, description, image_path, log_path, metadata
		FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %s not found", id)
	}
	return ev, err
}

// ListEvents returns events, newest first, optionally filtered by camera
// and a lower time bound.
func (d *Database) ListEvents(cameraID string, since *time.Time, limit int) ([]*event.Event, error) {
	query := `SELECT id, camera_id, timestamp, motion_confidence,
		objects, description, image_path, log_path, metadata FROM events WHERE 1=1`
	var args []interface{}
	if cameraID != "" {
		query += " AND camera_id = ?"
		args = append(args, cameraID)
	}
	if since != nil {
		query += " AND timestamp >= ?"
		args = append(args, since.UTC())
	}
	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*event.Event, error) {
	var (
		ev       event.Event
		objects  string
		metadata string
	)
	err := s.Scan(&ev.ID, &ev.CameraID, &ev.Timestamp, &ev.MotionConfidence,
		&objects, &ev.Description, &ev.ImagePath, &ev.LogPath, &metadata)
	if err != nil {
		return nil, err
	}
	if objects != "" {
		if err := json.Unmarshal([]byte(objects), &ev.Objects); err != nil {
			ev.Objects = []detect.Object{}
		}
	}
	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &ev.Metadata); err != nil {
			ev.Metadata = nil
		}
	}
	return &ev, nil
}
