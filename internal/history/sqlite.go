// Package history persists per-image processing results in SQLite so the
// status surface can report what happened to each capture.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/notedrop/seiri/internal/models"
)

// Store records processing results.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the history database at dbPath, creating parent
// directories as needed.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		run_id TEXT NOT NULL,
		image_path TEXT NOT NULL,
		image_name TEXT NOT NULL,
		quality_grade TEXT,
		quality_score REAL,
		text_quality TEXT,
		subject TEXT,
		content_type TEXT,
		confidence INTEGER,
		note_path TEXT,
		merged INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		detail TEXT,
		processing_ms INTEGER,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record appends one processing result. The full result is kept as JSON in
// the detail column; the flat columns exist for querying.
func (s *Store) Record(ctx context.Context, result models.ProcessingResult) error {
	detail, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var subject, contentType string
	var confidence int
	if result.Classification != nil {
		subject = result.Classification.Subject
		contentType = result.Classification.ContentType
		confidence = result.Classification.Confidence
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (
			run_id, image_path, image_name, quality_grade, quality_score,
			text_quality, subject, content_type, confidence, note_path,
			merged, skipped, degraded, reason, detail, processing_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.ImagePath, result.ImageName,
		result.Quality.Grade, result.Quality.OverallScore,
		string(result.TextQuality), subject, contentType, confidence,
		result.NotePath, result.Merged, result.Skipped, result.Degraded,
		result.Reason, string(detail), result.ProcessingTime.Milliseconds(),
		result.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// Recent returns the latest limit results, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.ProcessingResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT detail FROM results ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []models.ProcessingResult
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		var result models.ProcessingResult
		if err := json.Unmarshal([]byte(detail), &result); err != nil {
			return nil, fmt.Errorf("failed to decode history row: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Stats summarizes the recorded history.
type Stats struct {
	Total    int `json:"total"`
	Merged   int `json:"merged"`
	Skipped  int `json:"skipped"`
	Degraded int `json:"degraded"`
}

// Summary returns aggregate counts over all recorded results.
func (s *Store) Summary(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(merged), 0),
			COALESCE(SUM(skipped), 0),
			COALESCE(SUM(degraded), 0)
		FROM results`).
		Scan(&stats.Total, &stats.Merged, &stats.Skipped, &stats.Degraded)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to summarize history: %w", err)
	}
	return stats, nil
}

// Prune deletes results older than the cutoff, returning how many were
// removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM results WHERE created_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
