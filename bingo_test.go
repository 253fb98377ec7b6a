/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/Seednode/triviabingo/board"
	"github.com/Seednode/triviabingo/results"
)

type envelope struct {
	Type string `json:"type"`
}

func dial(t *testing.T, srv *httptest.Server, gameID string, jar http.CookieJar) *websocket.Conn {
	t.Helper()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bingo/" + gameID + "/ws"

	d := websocket.Dialer{Jar: jar, HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", u, err)
	}
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// readUntil discards messages until one of type typ arrives, decoding it
// into out when out is non-nil.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, out any) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Type != typ {
			continue
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				t.Fatalf("decode %s: %v", typ, err)
			}
		}
		return
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg, err)
	}
}

func newJar(t *testing.T) http.CookieJar {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return jar
}

func TestRedirectNewGame(t *testing.T) {
	srv, _ := startServer(t, testConfig(), testServices(t, ""))

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	resp, err := client.Get(srv.URL + "/bingo")
	if err != nil {
		t.Fatalf("GET /bingo: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}

	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/bingo/") || len(strings.TrimPrefix(loc, "/bingo/")) != 8 {
		t.Fatalf("unexpected redirect target %q", loc)
	}
}

func TestPlayFullGame(t *testing.T) {
	relayed := make(chan url.Values, 1)
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		relayed <- r.PostForm
	}))
	defer relay.Close()

	srv, _ := startServer(t, testConfig(), testServices(t, relay.URL))
	conn := dial(t, srv, "GAME0001", newJar(t))

	var info SessionInfoMessage
	readUntil(t, conn, "session_info", &info)
	if !info.IsOwner || info.AlreadySubmitted || info.GameID != "GAME0001" {
		t.Fatalf("unexpected session info: %+v", info)
	}

	var b BoardMessage
	readUntil(t, conn, "board", &b)
	if len(b.Cells) != 25 {
		t.Fatalf("board has %d cells", len(b.Cells))
	}

	send(t, conn, map[string]any{"type": "answer", "cell": 0, "answer": "too early"})
	readUntil(t, conn, "error", nil)

	send(t, conn, map[string]any{"type": "start", "name": "  Ada   Lovelace "})

	var state GameStateMessage
	readUntil(t, conn, "game_state", &state)
	if !state.Started || state.Player != "Ada Lovelace" || state.RemainingMs <= 0 {
		t.Fatalf("unexpected game state: %+v", state)
	}

	// Complete the top row.
	for i := 0; i < 5; i++ {
		answer := fmt.Sprintf(" ANSWER %d! ", b.Cells[i].QuestionID)
		send(t, conn, map[string]any{"type": "answer", "cell": i, "answer": answer})

		var res AnswerResultMessage
		readUntil(t, conn, "answer_result", &res)
		if res.Cell != i || !res.Correct {
			t.Fatalf("answer for cell %d rejected: %+v", i, res)
		}
	}

	send(t, conn, map[string]any{"type": "answer", "cell": 5, "answer": "no idea"})

	var wrong AnswerResultMessage
	readUntil(t, conn, "answer_result", &wrong)
	if wrong.Cell != 5 || wrong.Correct {
		t.Fatalf("wrong answer accepted: %+v", wrong)
	}

	send(t, conn, map[string]any{"type": "answer", "cell": 5, "answer": "again"})
	var again ErrorMessage
	readUntil(t, conn, "error", &again)
	if !strings.Contains(again.Message, "already answered") {
		t.Fatalf("unexpected error: %q", again.Message)
	}

	send(t, conn, map[string]any{"type": "finish"})

	var over GameOverMessage
	readUntil(t, conn, "game_over", &over)
	if over.Reason != "finished" || !over.Saved {
		t.Fatalf("unexpected game over: %+v", over)
	}
	// Lines are reported but only correct cells score.
	if over.Result.Correct != 5 || over.Result.Lines != 1 || over.Result.Points != 50 {
		t.Fatalf("unexpected result: %+v", over.Result)
	}
	if len(over.Cells) != 25 || over.Cells[0].Answer == "" {
		t.Fatalf("answers were not revealed")
	}
	if len(over.Leaderboard) != 1 || over.Leaderboard[0].Player != "Ada Lovelace" {
		t.Fatalf("unexpected leaderboard: %+v", over.Leaderboard)
	}

	select {
	case form := <-relayed:
		want := map[string]string{
			"player":              "Ada Lovelace",
			"points":              "50",
			"correct":             "5",
			"wrong":               "1",
			"unanswered":          "19",
			"total_questions":     "25",
			"completed_rows":      "1",
			"completed_columns":   "0",
			"completed_diagonals": "0",
			"accuracy":            "20.0",
			"submission_method":   "manual",
		}
		for k, v := range want {
			if form.Get(k) != v {
				t.Errorf("relayed %s = %q, want %q", k, form.Get(k), v)
			}
		}
		if !strings.Contains(form.Get("questions_data"), `"user_answer":"no idea","status":"wrong"`) {
			t.Errorf("questions_data lacks the wrong answer: %s", form.Get("questions_data"))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("result was not relayed")
	}

	resp, err := http.Get(srv.URL + "/leaderboard")
	if err != nil {
		t.Fatalf("GET /leaderboard: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"player":"Ada Lovelace"`) {
		t.Fatalf("leaderboard missing result: %s", body)
	}
}

func TestGameExpires(t *testing.T) {
	cfg := testConfig()
	cfg.gameDuration = 300 * time.Millisecond

	srv, _ := startServer(t, cfg, testServices(t, ""))
	conn := dial(t, srv, "GAME0002", newJar(t))

	readUntil(t, conn, "board", nil)
	send(t, conn, map[string]any{"type": "start", "name": "Grace"})

	var over GameOverMessage
	readUntil(t, conn, "game_over", &over)
	if over.Reason != "time" || over.Result.Points != 0 || over.Result.Player != "Grace" {
		t.Fatalf("unexpected game over: %+v", over)
	}
	if over.Result.Elapsed != cfg.gameDuration {
		t.Fatalf("elapsed = %s, want %s", over.Result.Elapsed, cfg.gameDuration)
	}
}

func TestSpectatorCannotPlay(t *testing.T) {
	srv, _ := startServer(t, testConfig(), testServices(t, ""))

	owner := dial(t, srv, "GAME0003", newJar(t))
	readUntil(t, owner, "board", nil)

	watcher := dial(t, srv, "GAME0003", newJar(t))

	var info SessionInfoMessage
	readUntil(t, watcher, "session_info", &info)
	if info.IsOwner {
		t.Fatalf("second player should not own the board")
	}

	send(t, watcher, map[string]any{"type": "start", "name": "Mallory"})

	var refused ErrorMessage
	readUntil(t, watcher, "error", &refused)
	if !strings.Contains(refused.Message, "Only the player") {
		t.Fatalf("unexpected error: %q", refused.Message)
	}

	send(t, owner, map[string]any{"type": "start", "name": "Ada"})

	var state GameStateMessage
	readUntil(t, watcher, "game_state", &state)
	if !state.Started || state.Player != "Ada" {
		t.Fatalf("watcher did not see the game start: %+v", state)
	}
}

func TestResultSubmittedOnce(t *testing.T) {
	srv, gm := startServer(t, testConfig(), testServices(t, ""))
	jar := newJar(t)

	conn := dial(t, srv, "GAME0004", jar)
	readUntil(t, conn, "board", nil)
	send(t, conn, map[string]any{"type": "start", "name": "Ada"})
	readUntil(t, conn, "game_state", nil)
	send(t, conn, map[string]any{"type": "finish"})

	var over GameOverMessage
	readUntil(t, conn, "game_over", &over)
	if !over.Saved {
		t.Fatalf("first result was not saved")
	}

	// Drop the game so the same URL deals a fresh board.
	gm.reap(time.Now().Add(time.Hour))

	again := dial(t, srv, "GAME0004", jar)

	var info SessionInfoMessage
	readUntil(t, again, "session_info", &info)
	if !info.AlreadySubmitted {
		t.Fatalf("expected the submission to be remembered: %+v", info)
	}

	send(t, again, map[string]any{"type": "start", "name": "Ada"})

	var refused ErrorMessage
	readUntil(t, again, "error", &refused)
	if !strings.Contains(refused.Message, "already submitted") {
		t.Fatalf("unexpected error: %q", refused.Message)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "Anonymous"},
		{"   ", "Anonymous"},
		{"  Ada \t Lovelace ", "Ada Lovelace"},
		{strings.Repeat("é", 40), strings.Repeat("é", maxNameLength)},
	}

	for _, tc := range tests {
		if got := cleanName(tc.in); got != tc.want {
			t.Errorf("cleanName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewReport(t *testing.T) {
	qs := testBank(t).All()

	b, err := board.New(qs[:board.Cells])
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}

	start := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	b.Start(start, 10*time.Minute)

	// Main diagonal right, one wrong answer, the rest untouched.
	for _, i := range []int{0, 6, 12, 18, 24} {
		if ok, err := b.Answer(start, i, qs[i].Answer); err != nil || !ok {
			t.Fatalf("Answer(%d) = %v, %v", i, ok, err)
		}
	}
	if _, err := b.Answer(start, 1, "nope"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	b.Finish(start.Add(4 * time.Minute))

	rep := newReport(results.Result{Correct: 5, Lines: 1}, b.Reveal(), b.Lines(), b.TimeLeft(), "time")

	if rep.Method != results.MethodTimeout {
		t.Errorf("Method = %q, want %q", rep.Method, results.MethodTimeout)
	}
	if rep.Total != 25 || rep.Wrong != 1 || rep.Unanswered != 19 {
		t.Errorf("counts = %d/%d/%d, want 25/1/19", rep.Total, rep.Wrong, rep.Unanswered)
	}
	if rep.Rows != 0 || rep.Columns != 0 || rep.Diagonals != 1 {
		t.Errorf("lines = %d/%d/%d, want 0/0/1", rep.Rows, rep.Columns, rep.Diagonals)
	}
	if rep.TimeLeft != 6*time.Minute {
		t.Errorf("TimeLeft = %s, want 6m", rep.TimeLeft)
	}
	if len(rep.Answers) != 25 {
		t.Fatalf("got %d answers", len(rep.Answers))
	}
	if a := rep.Answers[1]; a.Status != results.StatusWrong || a.UserAnswer != "nope" || a.CorrectAnswer != qs[1].Answer {
		t.Errorf("unexpected wrong answer record: %+v", a)
	}
	if a := rep.Answers[0]; a.Status != results.StatusCorrect || a.QuestionID != qs[0].ID {
		t.Errorf("unexpected correct answer record: %+v", a)
	}
	if a := rep.Answers[2]; a.Status != results.StatusUnanswered || a.UserAnswer != "" {
		t.Errorf("unexpected unanswered record: %+v", a)
	}

	if manual := newReport(results.Result{}, b.Reveal(), nil, 0, "finished"); manual.Method != results.MethodManual {
		t.Errorf("Method = %q, want %q", manual.Method, results.MethodManual)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"", 3, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"ééé", 2, "éé"},
		{"日本語テキスト", 3, "日本語"},
		{"a🎉b", 2, "a🎉"},
	}

	for _, tc := range tests {
		got := truncate(tc.in, tc.n)
		if got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid utf-8", tc.in, tc.n)
		}
	}
}

func TestLongAnswerKeepsWholeRunes(t *testing.T) {
	srv, _ := startServer(t, testConfig(), testServices(t, ""))
	conn := dial(t, srv, "GAME0005", newJar(t))

	readUntil(t, conn, "board", nil)
	send(t, conn, map[string]any{"type": "start", "name": "Ada"})
	readUntil(t, conn, "game_state", nil)

	// One ASCII byte shifts every two-byte rune across the byte limit.
	long := "x" + strings.Repeat("é", maxAnswerLength)
	send(t, conn, map[string]any{"type": "answer", "cell": 0, "answer": long})

	var res AnswerResultMessage
	readUntil(t, conn, "answer_result", &res)

	if !utf8.ValidString(res.Attempt) || strings.ContainsRune(res.Attempt, utf8.RuneError) {
		t.Fatalf("attempt was cut inside a rune: %q", res.Attempt)
	}
	if got := utf8.RuneCountInString(res.Attempt); got != maxAnswerLength {
		t.Fatalf("attempt has %d runes, want %d", got, maxAnswerLength)
	}
}

func TestNewGameIDUnique(t *testing.T) {
	gm := &GameManager{hubs: make(map[string]*Hub)}

	seen := make(map[string]bool)
	for range 500 {
		id := gm.newGameID()
		if len(id) != 8 {
			t.Fatalf("id %q has wrong length", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
