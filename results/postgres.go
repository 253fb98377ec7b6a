/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS results (
			id UUID PRIMARY KEY,
			game_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			player TEXT NOT NULL,
			correct INTEGER NOT NULL,
			lines INTEGER NOT NULL,
			points INTEGER NOT NULL,
			elapsed_ms BIGINT NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			UNIQUE (game_id, player_id)
		)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PostgresStore{db: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, r Result) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO results (id, game_id, player_id, player, correct, lines, points, elapsed_ms, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID.String(), r.GameID, r.PlayerID, r.Player, r.Correct, r.Lines, r.Points,
		r.Elapsed.Milliseconds(), r.FinishedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

func (s *PostgresStore) Submitted(ctx context.Context, gameID, playerID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE game_id = $1 AND player_id = $2)`,
		gameID, playerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check submission: %w", err)
	}

	return exists, nil
}

func (s *PostgresStore) Top(ctx context.Context, n int) ([]Result, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id::text, game_id, player, correct, lines, points, elapsed_ms, finished_at
		 FROM results
		 ORDER BY points DESC, elapsed_ms ASC, finished_at ASC
		 LIMIT $1`,
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
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse result id: %w", err)
		}
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, r)
	}

	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
