/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package questions loads, validates and samples the trivia question bank.
package questions

import (
	"bytes"
	"crypto/rand"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Seednode/triviabingo/matcher"
)

// MinQuestions is the smallest bank that can fill a board.
const MinQuestions = 25

var (
	ErrTooFewQuestions = errors.New("not enough questions to fill a board")
	ErrDuplicateID     = errors.New("duplicate question id")
	ErrEmptyQuestion   = errors.New("question text is empty")
	ErrEmptyAnswer     = errors.New("answer has no letters or digits")
	ErrUnknownFormat   = errors.New("unknown question bank format")
	ErrNotFound        = errors.New("question not found")
)

//go:embed default.yaml
var defaultBank []byte

// Question is a single bank entry. Answer is the reference text handed to the
// matcher.
type Question struct {
	ID       int    `yaml:"id" json:"id"`
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

type document struct {
	Questions []Question `yaml:"questions" json:"questions"`
}

// Bank is an immutable, validated set of questions.
type Bank struct {
	questions []Question
	byID      map[int]int
	warnings  []matcher.Mismatch
}

// Default returns the bank compiled into the binary.
func Default() *Bank {
	b, err := Parse(defaultBank, "yaml")
	if err != nil {
		panic("embedded question bank is invalid: " + err.Error())
	}
	return b
}

// Load reads a bank from disk, choosing the decoder by file extension.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".json":
		format = "json"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}

	b, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse decodes a bank in the given format ("yaml" or "json"). Either a bare
// list of questions or a document with a top-level "questions" key is
// accepted.
func Parse(data []byte, format string) (*Bank, error) {
	var qs []Question

	switch format {
	case "yaml":
		var doc document
		if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Questions) > 0 {
			qs = doc.Questions
		} else if err := yaml.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("failed to parse question bank: %w", err)
		}
	case "json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &qs); err != nil {
				return nil, fmt.Errorf("failed to parse question bank: %w", err)
			}
		} else {
			var doc document
			if err := json.Unmarshal(trimmed, &doc); err != nil {
				return nil, fmt.Errorf("failed to parse question bank: %w", err)
			}
			qs = doc.Questions
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return New(qs)
}

// New validates qs and builds a bank from it.
func New(qs []Question) (*Bank, error) {
	if len(qs) < MinQuestions {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewQuestions, len(qs), MinQuestions)
	}

	b := &Bank{
		questions: make([]Question, 0, len(qs)),
		byID:      make(map[int]int, len(qs)),
	}

	answers := make([]string, 0, len(qs))

	for _, q := range qs {
		if _, ok := b.byID[q.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, q.ID)
		}
		if strings.TrimSpace(q.Question) == "" {
			return nil, fmt.Errorf("%w: id %d", ErrEmptyQuestion, q.ID)
		}
		// An empty reference would be contained in every submission.
		if matcher.Normalize(q.Answer) == "" {
			return nil, fmt.Errorf("%w: id %d", ErrEmptyAnswer, q.ID)
		}

		b.byID[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
		answers = append(answers, q.Answer)
	}

	b.warnings = matcher.Check(answers)

	return b, nil
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// Get returns the question with the given id.
func (b *Bank) Get(id int) (Question, error) {
	i, ok := b.byID[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return b.questions[i], nil
}

// All returns a copy of every question in bank order.
func (b *Bank) All() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Warnings lists answers that fail to match perturbed copies of themselves.
func (b *Bank) Warnings() []matcher.Mismatch {
	return b.warnings
}

// Draw returns n distinct questions chosen uniformly at random.
func (b *Bank) Draw(n int) ([]Question, error) {
	if n > len(b.questions) {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewQuestions, len(b.questions), n)
	}

	pool := b.All()

	// Partial Fisher-Yates using crypto/rand
	for i := 0; i < n; i++ {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool)-i)))
		if err != nil {
			return nil, fmt.Errorf("failed to draw questions: %w", err)
		}
		k := i + int(j.Int64())
		pool[i], pool[k] = pool[k], pool[i]
	}

	return pool[:n], nil
}
