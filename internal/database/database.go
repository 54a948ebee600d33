// Package database persists pipeline runs and tracked detections in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Database handles SQLite database operations
type Database struct {
	db *sql.DB
}

// RunRecord represents one pipeline run stored in the database
type RunRecord struct {
	ID        string
	Source    string
	Detector  string
	StartedAt time.Time
	StoppedAt *time.Time
	Frames    int64
	Dropped   int64
}

// DetectionRecord represents one tracked detection stored in the database
type DetectionRecord struct {
	ID         int64
	RunID      string
	TrackID    int64
	Class      string
	Confidence float64
	X1, Y1     float64
	X2, Y2     float64
	FrameSeq   int64
	Timestamp  time.Time
}

// ConfigRecord represents a configuration key-value pair
type ConfigRecord struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Migrate runs database migrations
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			detector TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			stopped_at DATETIME,
			frames INTEGER DEFAULT 0,
			dropped INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			track_id INTEGER NOT NULL,
			class TEXT NOT NULL,
			confidence REAL,
			x1 REAL, y1 REAL, x2 REAL, y2 REAL,
			frame_seq INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE TABLE IF NOT EXISTS app_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_run_frame ON detections(run_id, frame_seq)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_track ON detections(run_id, track_id)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_time ON detections(timestamp DESC)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	fmt.Println("Database migrations completed successfully")
	return nil
}

// CreateRun inserts a new run row
func (d *Database) CreateRun(run *RunRecord) error {
	query := `INSERT INTO runs (id, source, detector, started_at, frames, dropped)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := d.db.Exec(query, run.ID, run.Source, run.Detector, run.StartedAt, run.Frames, run.Dropped)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the end of a run with its final counters
func (d *Database) FinishRun(id string, stoppedAt time.Time, frames, dropped int64) error {
	query := `UPDATE runs SET stopped_at = ?, frames = ?, dropped = ? WHERE id = ?`

	_, err := d.db.Exec(query, stoppedAt, frames, dropped, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (d *Database) GetRun(id string) (*RunRecord, error) {
	query := `SELECT id, source, detector, started_at, stopped_at, frames, dropped FROM runs WHERE id = ?`

	var run RunRecord
	var stoppedAt sql.NullTime
	err := d.db.QueryRow(query, id).Scan(&run.ID, &run.Source, &run.Detector, &run.StartedAt, &stoppedAt, &run.Frames, &run.Dropped)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if stoppedAt.Valid {
		run.StoppedAt = &stoppedAt.Time
	}
	return &run, nil
}

// ListRuns returns runs ordered by start time, newest first
func (d *Database) ListRuns(limit int) ([]*RunRecord, error) {
	query := `SELECT id, source, detector, started_at, stopped_at, frames, dropped FROM runs ORDER BY started_at DESC`
	args := []interface{}{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var run RunRecord
		var stoppedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.Source, &run.Detector, &run.StartedAt, &stoppedAt, &run.Frames, &run.Dropped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if stoppedAt.Valid {
			run.StoppedAt = &stoppedAt.Time
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

// SaveDetections inserts a batch of tracked detections in one transaction
func (d *Database) SaveDetections(records []*DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO detections
		(run_id, track_id, class, confidence, x1, y1, x2, y2, frame_seq, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.RunID, r.TrackID, r.Class, r.Confidence,
			r.X1, r.Y1, r.X2, r.Y2, r.FrameSeq, r.Timestamp); err != nil {
			return fmt.Errorf("failed to save detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detections: %w", err)
	}
	return nil
}

// ListDetections returns detections for a run with optional filtering
func (d *Database) ListDetections(runID string, since *time.Time, limit int) ([]*DetectionRecord, error) {
	query := `SELECT id, run_id, track_id, class, confidence, x1, y1, x2, y2, frame_seq, timestamp
		FROM detections WHERE run_id = ?`
	args := []interface{}{runID}

	if since != nil {
		query += " AND timestamp >= ?"
		args = append(args, *since)
	}

	query += " ORDER BY frame_seq ASC, track_id ASC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	var records []*DetectionRecord
	for rows.Next() {
		var r DetectionRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.TrackID, &r.Class, &r.Confidence,
			&r.X1, &r.Y1, &r.X2, &r.Y2, &r.FrameSeq, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		records = append(records, &r)
	}
	return records, nil
}

// DeleteOldDetections deletes detections older than the specified time
func (d *Database) DeleteOldDetections(before time.Time) (int64, error) {
	result, err := d.db.Exec("DELETE FROM detections WHERE timestamp < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old detections: %w", err)
	}
	return result.RowsAffected()
}

// SaveConfig saves a configuration value
func (d *Database) SaveConfig(key, value string) error {
	query := `INSERT INTO app_config (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`

	_, err := d.db.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// GetConfig retrieves a configuration value
func (d *Database) GetConfig(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config: %w", err)
	}
	return value, nil
}

// ListConfigs returns all configuration values
func (d *Database) ListConfigs() (map[string]string, error) {
	rows, err := d.db.Query("SELECT key, value FROM app_config")
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		configs[key] = value
	}
	return configs, nil
}
