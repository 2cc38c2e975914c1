// Package persistence is an opt-in SQLite history sink for feedback,
// quality metrics, and finished-run summaries. The orchestration core keeps
// its canonical state in memory; nothing here sits on a hot path.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openatelier/atelier/internal/iteration"
)

// RunSummary is the stored record of one finished execution context.
type RunSummary struct {
	ContextID string
	PlanID    string
	Status    string
	Progress  float64
	Total     int
	Completed int
	Failed    int
	StartedAt time.Time
	EndedAt   time.Time
}

// Store is a SQLite-backed history sink. It implements iteration.Sink.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a store at dbPath with WAL mode and a busy
// timeout, creating parent directories as needed.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(2)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewMemoryStore creates an in-memory store for testing. Shared cache keeps
// multiple connections on the same database.
func NewMemoryStore(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	db.SetMaxOpenConns(2)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveFeedback appends one feedback record.
func (s *Store) SaveFeedback(ctx context.Context, fb iteration.Feedback) error {
	var relevance, clarity, creativity, accuracy *int
	if fb.Aspects != nil {
		relevance = fb.Aspects.Relevance
		clarity = fb.Aspects.Clarity
		creativity = fb.Aspects.Creativity
		accuracy = fb.Aspects.Accuracy
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (content_id, user_id, rating, relevance, clarity, creativity, accuracy, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, fb.ContentID, fb.UserID, fb.Rating, relevance, clarity, creativity, accuracy, fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

// ListFeedback returns all feedback for a content id, oldest first.
func (s *Store) ListFeedback(ctx context.Context, contentID string) ([]iteration.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_id, user_id, rating, relevance, clarity, creativity, accuracy, comment, created_at
		FROM feedback WHERE content_id = ? ORDER BY id
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var out []iteration.Feedback
	for rows.Next() {
		var fb iteration.Feedback
		var rating, relevance, clarity, creativity, accuracy sql.NullInt64
		if err := rows.Scan(&fb.ContentID, &fb.UserID, &rating, &relevance, &clarity, &creativity, &accuracy, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		if rating.Valid {
			v := int(rating.Int64)
			fb.Rating = &v
		}
		if relevance.Valid || clarity.Valid || creativity.Valid || accuracy.Valid {
			fb.Aspects = &iteration.AspectRatings{}
			if relevance.Valid {
				v := int(relevance.Int64)
				fb.Aspects.Relevance = &v
			}
			if clarity.Valid {
				v := int(clarity.Int64)
				fb.Aspects.Clarity = &v
			}
			if creativity.Valid {
				v := int(creativity.Int64)
				fb.Aspects.Creativity = &v
			}
			if accuracy.Valid {
				v := int(accuracy.Int64)
				fb.Aspects.Accuracy = &v
			}
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// AppendQuality appends one metric to a content's series.
func (s *Store) AppendQuality(ctx context.Context, contentID string, m iteration.QualityMetric) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quality_metrics (content_id, score, confidence, source, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, contentID, m.Score, m.Confidence, m.Source, m.RecordedAt)
	if err != nil {
		return fmt.Errorf("inserting quality metric: %w", err)
	}
	return nil
}

// QualityHistory returns the stored series for a content id, oldest first.
func (s *Store) QualityHistory(ctx context.Context, contentID string) ([]iteration.QualityMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT score, confidence, source, recorded_at
		FROM quality_metrics WHERE content_id = ? ORDER BY id
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("querying quality metrics: %w", err)
	}
	defer rows.Close()

	var out []iteration.QualityMetric
	for rows.Next() {
		var m iteration.QualityMetric
		if err := rows.Scan(&m.Score, &m.Confidence, &m.Source, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning quality metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveRunSummary upserts the summary of a finished context.
func (s *Store) SaveRunSummary(ctx context.Context, r RunSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_summaries (context_id, plan_id, status, progress, total, completed, failed, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(context_id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			total = excluded.total,
			completed = excluded.completed,
			failed = excluded.failed,
			ended_at = excluded.ended_at
	`, r.ContextID, r.PlanID, r.Status, r.Progress, r.Total, r.Completed, r.Failed, r.StartedAt, r.EndedAt)
	if err != nil {
		return fmt.Errorf("upserting run summary: %w", err)
	}
	return nil
}

// ListRunSummaries returns all stored run summaries, newest first.
func (s *Store) ListRunSummaries(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT context_id, plan_id, status, progress, total, completed, failed, started_at, ended_at
		FROM run_summaries ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying run summaries: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var ended sql.NullTime
		if err := rows.Scan(&r.ContextID, &r.PlanID, &r.Status, &r.Progress, &r.Total, &r.Completed, &r.Failed, &r.StartedAt, &ended); err != nil {
			return nil, fmt.Errorf("scanning run summary: %w", err)
		}
		if ended.Valid {
			r.EndedAt = ended.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
