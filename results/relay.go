/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package results

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Relay posts finished results as an HTML form to an external endpoint, such
// as a spreadsheet-backed script. A Relay with no URL does nothing.
type Relay struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewRelay(endpoint string, timeout time.Duration) *Relay {
	return &Relay{
		url:     endpoint,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *Relay) Enabled() bool {
	return r != nil && r.url != ""
}

func formValues(rep Report) (url.Values, error) {
	answers, err := json.Marshal(rep.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	return url.Values{
		"id":                   {rep.ID.String()},
		"game_id":              {rep.GameID},
		"player":               {rep.Player},
		"points":               {strconv.Itoa(rep.Points)},
		"seconds":              {strconv.FormatFloat(rep.Elapsed.Seconds(), 'f', 1, 64)},
		"time_left":            {strconv.Itoa(int(rep.TimeLeft.Seconds()))},
		"finished_at":          {rep.FinishedAt.UTC().Format(time.RFC3339)},
		"total_questions":      {strconv.Itoa(rep.Total)},
		"correct":              {strconv.Itoa(rep.Correct)},
		"wrong":                {strconv.Itoa(rep.Wrong)},
		"unanswered":           {strconv.Itoa(rep.Unanswered)},
		"lines":                {strconv.Itoa(rep.Lines)},
		"completed_rows":       {strconv.Itoa(rep.Rows)},
		"completed_columns":    {strconv.Itoa(rep.Columns)},
		"completed_diagonals":  {strconv.Itoa(rep.Diagonals)},
		"accuracy":             {strconv.FormatFloat(rep.Accuracy(), 'f', 1, 64)},
		"seconds_per_question": {strconv.FormatFloat(rep.SecondsPerQuestion(), 'f', 1, 64)},
		"submission_method":    {rep.Method},
		"questions_data":       {string(answers)},
	}, nil
}

// Submit sends rep and waits for the response. Callers normally run it in
// its own goroutine and only log the error.
func (r *Relay) Submit(ctx context.Context, rep Report) error {
	if !r.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	form, err := formValues(rep)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to relay result: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("relay endpoint returned %s", resp.Status)
	}

	return nil
}
