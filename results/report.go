/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package results

import (
	"time"
)

const (
	StatusCorrect    = "correct"
	StatusWrong      = "wrong"
	StatusUnanswered = "unanswered"
)

const (
	MethodManual  = "manual"
	MethodTimeout = "timeout"
)

// AnswerRecord is one cell of a finished board as it is relayed.
type AnswerRecord struct {
	QuestionID    int    `json:"id"`
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	UserAnswer    string `json:"user_answer"`
	Status        string `json:"status"`
}

// Report is everything relayed about a finished game: the stored result
// plus the per-cell breakdown and line counts that only the relay keeps.
type Report struct {
	Result

	Total      int
	Wrong      int
	Unanswered int

	Rows      int
	Columns   int
	Diagonals int

	TimeLeft time.Duration
	Method   string

	Answers []AnswerRecord
}

// Accuracy is the percentage of all cells answered correctly.
func (r Report) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total) * 100
}

// SecondsPerQuestion spreads the elapsed time evenly over every cell.
func (r Report) SecondsPerQuestion() float64 {
	if r.Total == 0 {
		return 0
	}
	return r.Elapsed.Seconds() / float64(r.Total)
}
