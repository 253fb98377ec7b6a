/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path. ":memory:" keeps
// results for the life of the process only.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to :memory: would otherwise get its own
	// empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		player_id TEXT NOT NULL,
		player TEXT NOT NULL,
		correct INTEGER NOT NULL,
		lines INTEGER NOT NULL,
		points INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		UNIQUE (game_id, player_id)
	);

	CREATE INDEX IF NOT EXISTS idx_results_rank ON results(points DESC, elapsed_ms ASC, finished_at ASC);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, r Result) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, game_id, player_id, player, correct, lines, points, elapsed_ms, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.GameID, r.PlayerID, r.Player, r.Correct, r.Lines, r.Points,
		r.Elapsed.Milliseconds(), r.FinishedAt.UTC(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Submitted(ctx context.Context, gameID, playerID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE game_id = ? AND player_id = ?`,
		gameID, playerID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check submission: %w", err)
	}

	return n > 0, nil
}

func (s *SQLiteStore) Top(ctx context.Context, n int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, player, correct, lines, points, elapsed_ms, finished_at
		 FROM results
		 ORDER BY points DESC, elapsed_ms ASC, finished_at ASC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r         Result
			id        string
			elapsedMs int64
		)
		if err := rows.Scan(&id, &r.GameID, &r.Player, &r.Correct, &r.Lines, &r.Points, &elapsedMs, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if r.ID, err = uuid.Parse(strings.TrimSpace(id)); err != nil {
			return nil, fmt.Errorf("failed to parse result id: %w", err)
		}
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, r)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
