/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package board tracks a single 5x5 trivia bingo board: which cells were
// answered, which were right, which lines are complete, and the clock.
//
// A Board is not safe for concurrent use; the owner serialises access.
package board

import (
	"errors"
	"fmt"
	"time"

	"github.com/Seednode/triviabingo/matcher"
	"github.com/Seednode/triviabingo/questions"
)

const (
	Size  = 5
	Cells = Size * Size
)

// PointsPerCorrect is the only source of points. Lines and blackouts are
// reported but not rewarded.
const PointsPerCorrect = 10

var (
	ErrWrongSize       = errors.New("board needs exactly 25 questions")
	ErrOutOfRange      = errors.New("cell index out of range")
	ErrAlreadyAnswered = errors.New("cell already answered")
	ErrNotStarted      = errors.New("game has not started")
	ErrFinished        = errors.New("game is over")
	ErrExpired         = errors.New("time is up")
)

type Cell struct {
	Index      int    `json:"index"`
	QuestionID int    `json:"question_id"`
	Question   string `json:"question"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
	Attempt    string `json:"attempt,omitempty"`
}

// Revealed is a cell together with its reference answer, only handed out
// once the game is over.
type Revealed struct {
	Cell
	Answer string `json:"answer"`
}

type Line struct {
	Kind  string `json:"kind"` // "row", "column" or "diagonal"
	Index int    `json:"index"`
}

type Score struct {
	Correct  int  `json:"correct"`
	Lines    int  `json:"lines"`
	Blackout bool `json:"blackout"`
	Points   int  `json:"points"`
}

type Board struct {
	cells   [Cells]Cell
	answers [Cells]string

	duration   time.Duration
	startedAt  time.Time
	deadline   time.Time
	finishedAt time.Time
	started    bool
	finished   bool
}

// New lays qs out row by row.
func New(qs []questions.Question) (*Board, error) {
	if len(qs) != Cells {
		return nil, fmt.Errorf("%w: got %d", ErrWrongSize, len(qs))
	}

	b := &Board{}
	for i, q := range qs {
		b.cells[i] = Cell{
			Index:      i,
			QuestionID: q.ID,
			Question:   q.Question,
		}
		b.answers[i] = q.Answer
	}

	return b, nil
}

// Start begins the countdown. Starting twice is a no-op.
func (b *Board) Start(now time.Time, d time.Duration) {
	if b.started {
		return
	}

	b.started = true
	b.duration = d
	b.startedAt = now
	b.deadline = now.Add(d)
}

func (b *Board) Started() bool {
	return b.started
}

func (b *Board) Finished() bool {
	return b.finished
}

func (b *Board) Deadline() time.Time {
	return b.deadline
}

// Expired reports whether the countdown ran out, whether or not the game
// has been finished yet.
func (b *Board) Expired(now time.Time) bool {
	return b.started && !now.Before(b.deadline)
}

func (b *Board) Remaining(now time.Time) time.Duration {
	switch {
	case !b.started:
		return b.duration
	case b.finished:
		return 0
	}

	if left := b.deadline.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Finish stops the clock. The finish time never runs past the deadline.
func (b *Board) Finish(now time.Time) {
	if b.finished || !b.started {
		return
	}

	if now.After(b.deadline) {
		now = b.deadline
	}

	b.finished = true
	b.finishedAt = now
}

// TimeLeft is what was still on the clock when the game finished, or zero
// while the game runs.
func (b *Board) TimeLeft() time.Duration {
	if !b.finished {
		return 0
	}
	return b.deadline.Sub(b.finishedAt)
}

// Elapsed is the time from start to finish, or zero while the game runs.
func (b *Board) Elapsed() time.Duration {
	if !b.finished {
		return 0
	}
	return b.finishedAt.Sub(b.startedAt)
}

// Answer judges input against the reference for cell index. Each cell takes
// exactly one attempt, right or wrong.
func (b *Board) Answer(now time.Time, index int, input string) (bool, error) {
	switch {
	case b.finished:
		return false, ErrFinished
	case !b.started:
		return false, ErrNotStarted
	case b.Expired(now):
		return false, ErrExpired
	case index < 0 || index >= Cells:
		return false, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	case b.cells[index].Answered:
		return false, fmt.Errorf("%w: %d", ErrAlreadyAnswered, index)
	}

	correct := matcher.IsMatch(input, b.answers[index])

	b.cells[index].Answered = true
	b.cells[index].Correct = correct
	b.cells[index].Attempt = input

	return correct, nil
}

// Complete reports whether every cell has been attempted.
func (b *Board) Complete() bool {
	for _, c := range b.cells {
		if !c.Answered {
			return false
		}
	}
	return true
}

func (b *Board) Cells() []Cell {
	out := make([]Cell, Cells)
	copy(out, b.cells[:])
	return out
}

// Reveal returns every cell with its answer once the game is over, and nil
// before that.
func (b *Board) Reveal() []Revealed {
	if !b.finished {
		return nil
	}

	out := make([]Revealed, Cells)
	for i, c := range b.cells {
		out[i] = Revealed{Cell: c, Answer: b.answers[i]}
	}
	return out
}

func (b *Board) correct(row, col int) bool {
	return b.cells[row*Size+col].Correct
}

// Lines lists every completed row, column and diagonal.
func (b *Board) Lines() []Line {
	var lines []Line

	for row := 0; row < Size; row++ {
		full := true
		for col := 0; col < Size; col++ {
			full = full && b.correct(row, col)
		}
		if full {
			lines = append(lines, Line{Kind: "row", Index: row})
		}
	}

	for col := 0; col < Size; col++ {
		full := true
		for row := 0; row < Size; row++ {
			full = full && b.correct(row, col)
		}
		if full {
			lines = append(lines, Line{Kind: "column", Index: col})
		}
	}

	main, anti := true, true
	for i := 0; i < Size; i++ {
		main = main && b.correct(i, i)
		anti = anti && b.correct(i, Size-1-i)
	}
	if main {
		lines = append(lines, Line{Kind: "diagonal", Index: 0})
	}
	if anti {
		lines = append(lines, Line{Kind: "diagonal", Index: 1})
	}

	return lines
}

func (b *Board) Score() Score {
	var s Score

	for _, c := range b.cells {
		if c.Correct {
			s.Correct++
		}
	}

	s.Lines = len(b.Lines())
	s.Blackout = s.Correct == Cells
	s.Points = s.Correct * PointsPerCorrect

	return s
}
