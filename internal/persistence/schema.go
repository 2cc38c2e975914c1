package persistence

import (
	"context"
	"fmt"
)

// initSchema creates tables if they don't exist.
func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			rating INTEGER,
			relevance INTEGER,
			clarity INTEGER,
			creativity INTEGER,
			accuracy INTEGER,
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_content ON feedback(content_id)`,
		`CREATE TABLE IF NOT EXISTS quality_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content_id TEXT NOT NULL,
			score REAL NOT NULL,
			confidence REAL NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			recorded_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quality_content ON quality_metrics(content_id)`,
		`CREATE TABLE IF NOT EXISTS run_summaries (
			context_id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			status TEXT NOT NULL,
			progress REAL NOT NULL,
			total INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
