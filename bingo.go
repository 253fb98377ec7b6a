// Trivia Bingo
//
// A single player is dealt a 5x5 board of questions drawn from the question
// bank and has a fixed amount of time to answer as many as they can. Answers
// are typed freely and judged by the fuzzy matcher.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - First cookie to connect owns the board; later connections only watch
// - One attempt per cell, right or wrong
// - Score is 10 points per correct answer; completed rows, columns and
//   diagonals are tracked and reported but earn nothing extra
// - Countdown enforced server-side; the game ends when time runs out, every
//   cell is attempted, or the player gives up
// - Results saved once per game and player, then relayed to an external form
//   endpoint if one is configured
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current board, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/triviabingo/board"
	"github.com/Seednode/triviabingo/questions"
	"github.com/Seednode/triviabingo/results"
)

const (
	maxNameLength   = 32
	maxAnswerLength = 200
	storeTimeout    = 5 * time.Second
)

// Messages coming from clients
type ClientMessage struct {
	Type   string `json:"type"`             // "start", "answer", "finish"
	Name   string `json:"name,omitempty"`   // start
	Cell   *int   `json:"cell,omitempty"`   // answer
	Answer string `json:"answer,omitempty"` // answer
}

// SessionInfoMessage is sent immediately on connect so the client knows
// whether it owns the board.
type SessionInfoMessage struct {
	Type             string `json:"type"`             // "session_info"
	GameID           string `json:"game_id"`          // current game
	IsOwner          bool   `json:"is_owner"`         // true if this cookie may answer
	AlreadySubmitted bool   `json:"already_submitted"` // a result exists for this cookie and game
	Player           string `json:"player,omitempty"` // name given at start, if any
	DurationMs       int64  `json:"duration_ms"`      // length of the countdown
}

// BoardMessage carries the questions, never the answers.
type BoardMessage struct {
	Type  string       `json:"type"` // "board"
	Cells []board.Cell `json:"cells"`
}

// AnswerResultMessage informs everyone about a single answer.
type AnswerResultMessage struct {
	Type    string `json:"type"` // "answer_result"
	Cell    int    `json:"cell"`
	Correct bool   `json:"correct"`
	Attempt string `json:"attempt"`
}

// GameStateMessage carries the clock and the running score.
type GameStateMessage struct {
	Type        string       `json:"type"` // "game_state"
	Started     bool         `json:"started"`
	Finished    bool         `json:"finished"`
	Player      string       `json:"player,omitempty"`
	DeadlineMs  int64        `json:"deadline_ms,omitempty"` // unix milliseconds, once started
	RemainingMs int64        `json:"remaining_ms"`
	Score       board.Score  `json:"score"`
	Lines       []board.Line `json:"lines"`
}

// GameOverMessage reveals the answers and the standings.
type GameOverMessage struct {
	Type        string           `json:"type"`   // "game_over"
	Reason      string           `json:"reason"` // "time", "complete" or "finished"
	Cells       []board.Revealed `json:"cells"`
	Result      results.Result   `json:"result"`
	Saved       bool             `json:"saved"`
	Leaderboard []results.Result `json:"leaderboard"`
}

// ErrorMessage is sent to a single client whose request was refused.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type actionRequest struct {
	client *Client
	msg    ClientMessage
}

// services are shared by every game.
type services struct {
	bank  *questions.Source
	store results.Store
	relay *results.Relay
}

type Hub struct {
	id  string
	cfg *Config
	svc *services

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	actions  chan actionRequest
	done     chan struct{}

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
	ownerID    string // cookie/playerID allowed to answer
	player     string

	board  *board.Board
	timer  *time.Timer
	closed bool
}

func newHub(cfg *Config, svc *services, gameID string) (*Hub, error) {
	qs, err := svc.bank.Current().Draw(board.Cells)
	if err != nil {
		return nil, err
	}

	b, err := board.New(qs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Hub{
		id:         gameID,
		cfg:        cfg,
		svc:        svc,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan actionRequest),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
		board:      b,
	}, nil
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			submitted := h.submitted(c.playerID)

			h.mu.Lock()
			h.lastActive = time.Now()

			// First connection owns the board
			if h.ownerID == "" {
				h.ownerID = c.playerID
			}

			h.clients[c] = true

			h.sendLocked(c, SessionInfoMessage{
				Type:             "session_info",
				GameID:           h.id,
				IsOwner:          c.playerID == h.ownerID,
				AlreadySubmitted: submitted,
				Player:           h.player,
				DurationMs:       h.cfg.gameDuration.Milliseconds(),
			})
			h.sendLocked(c, BoardMessage{
				Type:  "board",
				Cells: h.board.Cells(),
			})
			h.sendLocked(c, h.gameStateLocked(time.Now()))

			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case ar := <-h.actions:
			switch ar.msg.Type {
			case "start":
				h.handleStart(ar)
			case "answer":
				h.handleAnswer(ar)
			case "finish":
				h.handleFinish(ar)
			}
		}
	}
}

func (h *Hub) submitted(playerID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	ok, err := h.svc.store.Submitted(ctx, h.id, playerID)
	if err != nil {
		errorf(h.cfg, "GAMES: Checking submission for %s failed: %v", h.id, err)
		return false
	}
	return ok
}

// sendLocked queues msg for c, dropping the client if its buffer is full.
// Assumes h.mu is held.
func (h *Hub) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

func (h *Hub) gameStateLocked(now time.Time) GameStateMessage {
	lines := h.board.Lines()
	if lines == nil {
		lines = []board.Line{}
	}

	var deadline int64
	if h.board.Started() {
		deadline = h.board.Deadline().UnixMilli()
	}

	return GameStateMessage{
		Type:        "game_state",
		Started:     h.board.Started(),
		Finished:    h.board.Finished(),
		Player:      h.player,
		DeadlineMs:  deadline,
		RemainingMs: h.board.Remaining(now).Milliseconds(),
		Score:       h.board.Score(),
		Lines:       lines,
	}
}

// refuse tells a single client why its request was ignored.
func (h *Hub) refuse(c *Client, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		h.sendLocked(c, ErrorMessage{Type: "error", Message: text})
	}
}

func cleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "Anonymous"
	}
	return truncate(name, maxNameLength)
}

// truncate cuts s to at most n runes without splitting one.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// handleStart starts the countdown for the board owner.
func (h *Hub) handleStart(ar actionRequest) {
	c := ar.client

	if c.playerID == "" {
		return
	}

	if h.submitted(c.playerID) {
		h.refuse(c, "You have already submitted a result for this game.")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if c.playerID != h.ownerID {
		h.sendLocked(c, ErrorMessage{Type: "error", Message: "Only the player who opened this board can play it."})
		return
	}
	if h.board.Started() {
		return
	}

	now := time.Now()
	h.player = cleanName(ar.msg.Name)
	h.board.Start(now, h.cfg.gameDuration)
	h.timer = time.AfterFunc(h.cfg.gameDuration, h.expire)

	logf(h.cfg, "GAMES: %q started %s", h.player, h.id)

	h.broadcastLocked(h.gameStateLocked(now))
}

// handleAnswer judges a single answer from the board owner.
func (h *Hub) handleAnswer(ar actionRequest) {
	c := ar.client
	msg := ar.msg

	if c.playerID == "" || msg.Cell == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	h.lastActive = now

	if c.playerID != h.ownerID {
		h.sendLocked(c, ErrorMessage{Type: "error", Message: "Only the player who opened this board can answer."})
		return
	}

	attempt := truncate(strings.TrimSpace(msg.Answer), maxAnswerLength)

	correct, err := h.board.Answer(now, *msg.Cell, attempt)
	switch {
	case errors.Is(err, board.ErrExpired):
		h.finishLocked(now, "time")
		return
	case err != nil:
		h.sendLocked(c, ErrorMessage{Type: "error", Message: err.Error()})
		return
	}

	logf(h.cfg, "GAMES: %q answered cell %d in %s (correct: %t)", h.player, *msg.Cell, h.id, correct)

	h.broadcastLocked(AnswerResultMessage{
		Type:    "answer_result",
		Cell:    *msg.Cell,
		Correct: correct,
		Attempt: attempt,
	})
	h.broadcastLocked(h.gameStateLocked(now))

	if h.board.Complete() {
		h.finishLocked(now, "complete")
	}
}

func (h *Hub) handleFinish(ar actionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	h.lastActive = now

	if ar.client.playerID != h.ownerID || !h.board.Started() {
		return
	}

	h.finishLocked(now, "finished")
}

// expire fires when the countdown runs out.
func (h *Hub) expire() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.finishLocked(time.Now(), "time")
}

// finishLocked stops the clock, then records the result in the background.
// Assumes h.mu is held.
func (h *Hub) finishLocked(now time.Time, reason string) {
	if h.board.Finished() || !h.board.Started() {
		return
	}

	if h.timer != nil {
		h.timer.Stop()
	}

	h.board.Finish(now)

	score := h.board.Score()
	res := results.NewResult(results.Result{
		GameID:     h.id,
		PlayerID:   h.ownerID,
		Player:     h.player,
		Correct:    score.Correct,
		Lines:      score.Lines,
		Points:     score.Points,
		Elapsed:    h.board.Elapsed(),
		FinishedAt: now,
	})

	logf(h.cfg, "GAMES: %q finished %s with %d points (%s)", h.player, h.id, score.Points, reason)

	h.broadcastLocked(h.gameStateLocked(now))

	cells := h.board.Reveal()
	rep := newReport(res, cells, h.board.Lines(), h.board.TimeLeft(), reason)

	go h.record(rep, cells, reason)
}

// newReport expands res with the per-cell breakdown that is relayed but not
// stored.
func newReport(res results.Result, cells []board.Revealed, lines []board.Line, timeLeft time.Duration, reason string) results.Report {
	rep := results.Report{
		Result:   res,
		Total:    len(cells),
		TimeLeft: timeLeft,
		Method:   results.MethodManual,
		Answers:  make([]results.AnswerRecord, 0, len(cells)),
	}
	if reason == "time" {
		rep.Method = results.MethodTimeout
	}

	for _, l := range lines {
		switch l.Kind {
		case "row":
			rep.Rows++
		case "column":
			rep.Columns++
		case "diagonal":
			rep.Diagonals++
		}
	}

	for _, c := range cells {
		status := results.StatusUnanswered
		switch {
		case c.Correct:
			status = results.StatusCorrect
		case c.Answered:
			status = results.StatusWrong
			rep.Wrong++
		default:
			rep.Unanswered++
		}

		rep.Answers = append(rep.Answers, results.AnswerRecord{
			QuestionID:    c.QuestionID,
			Question:      c.Question,
			CorrectAnswer: c.Answer,
			UserAnswer:    c.Attempt,
			Status:        status,
		})
	}

	return rep
}

// record saves and relays rep, then announces the final standings.
func (h *Hub) record(rep results.Report, cells []board.Revealed, reason string) {
	res := rep.Result

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	saved := false
	err := h.svc.store.Save(ctx, res)
	switch {
	case err == nil:
		saved = true
	case errors.Is(err, results.ErrAlreadySubmitted):
		logf(h.cfg, "GAMES: Result for %s already submitted", h.id)
	default:
		errorf(h.cfg, "GAMES: Saving result for %s failed: %v", h.id, err)
	}

	if saved && h.svc.relay.Enabled() {
		go func() {
			if err := h.svc.relay.Submit(context.Background(), rep); err != nil {
				errorf(h.cfg, "GAMES: Relaying result for %s failed: %v", h.id, err)
				return
			}
			logf(h.cfg, "GAMES: Relayed result for %s", h.id)
		}()
	}

	top, err := h.svc.store.Top(ctx, h.cfg.leaderboardSize)
	if err != nil {
		errorf(h.cfg, "GAMES: Loading leaderboard failed: %v", err)
	}
	if top == nil {
		top = []results.Result{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(GameOverMessage{
		Type:        "game_over",
		Reason:      reason,
		Cells:       cells,
		Result:      res,
		Saved:       saved,
		Leaderboard: top,
	})
}

// closeAll disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	if h.timer != nil {
		h.timer.Stop()
	}

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}

	close(h.done)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const playerCookieName = "triviabingo_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated board.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	cfg         *Config
	svc         *services
	idleTimeout time.Duration
}

func newGameManager(ctx context.Context, cfg *Config, svc *services) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		cfg:         cfg,
		svc:         svc,
		idleTimeout: cfg.sessionTimeout,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop(ctx)
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub, nil
	}

	hub, err := newHub(gm.cfg, gm.svc, gameID)
	if err != nil {
		return nil, err
	}
	gm.hubs[gameID] = hub
	go hub.run()

	logf(gm.cfg, "GAMES: Dealt board for %s", gameID)

	return hub, nil
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			gm.closeAll()
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
			logf(gm.cfg, "GAMES: Reaped idle game %s", id)
		}
	}
}

func (gm *GameManager) closeAll() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.closeAll()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		hub, err := gm.getHub(gameID)
		if err != nil {
			errorf(cfg, "GAMES: Dealing board for %s failed: %v", gameID, err)
			http.Error(w, "unable to deal a board", http.StatusInternalServerError)
			return
		}

		// The Set-Cookie header from getOrSetPlayerID rides on the upgrade response.
		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			logf(cfg, "GAMES: Upgrade for %s failed: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start", "answer", "finish":
			select {
			case h.actions <- actionRequest{client: c, msg: msg}:
			case <-h.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/bingo/index.html")
		if err != nil {
			http.Error(w, "missing page", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(data)
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerBingoGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerBingoGame(ctx context.Context, cfg *Config, svc *services, path string, mux *httprouter.Router) *GameManager {
	gm := newGameManager(ctx, cfg, svc)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	return gm
}
