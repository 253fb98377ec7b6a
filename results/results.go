/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package results records finished games, serves the leaderboard and relays
// each result to an optional external endpoint.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadySubmitted = errors.New("result already submitted for this game")
	ErrUnknownDriver    = errors.New("unknown results driver")
)

// Result is the outcome of one finished game.
type Result struct {
	ID         uuid.UUID     `json:"id"`
	GameID     string        `json:"game_id"`
	PlayerID   string        `json:"-"`
	Player     string        `json:"player"`
	Correct    int           `json:"correct"`
	Lines      int           `json:"lines"`
	Points     int           `json:"points"`
	Elapsed    time.Duration `json:"elapsed"`
	FinishedAt time.Time     `json:"finished_at"`
}

// NewResult stamps a fresh ID on r.
func NewResult(r Result) Result {
	r.ID = uuid.New()
	return r
}

// Store persists results. Save refuses a second result for the same game and
// player with ErrAlreadySubmitted.
type Store interface {
	Save(ctx context.Context, r Result) error
	Submitted(ctx context.Context, gameID, playerID string) (bool, error)
	Top(ctx context.Context, n int) ([]Result, error)
	Close() error
}

// Open returns the store for driver, "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
