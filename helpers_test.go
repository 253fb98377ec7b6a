/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Seednode/triviabingo/questions"
	"github.com/Seednode/triviabingo/results"
)

func testConfig() *Config {
	return &Config{
		bind:            "127.0.0.1",
		gameDuration:    time.Minute,
		leaderboardSize: 10,
		port:            8080,
		relayTimeout:    time.Second,
		resultsDriver:   "sqlite",
		sessionTimeout:  time.Hour,
		logger:          zap.NewNop().Sugar(),
	}
}

func testBank(t *testing.T) *questions.Bank {
	t.Helper()

	qs := make([]questions.Question, questions.MinQuestions)
	for i := range qs {
		qs[i] = questions.Question{
			ID:       i + 1,
			Question: fmt.Sprintf("What is answer %d?", i+1),
			Answer:   fmt.Sprintf("Answer %d", i+1),
		}
	}

	b, err := questions.New(qs)
	if err != nil {
		t.Fatalf("questions.New: %v", err)
	}
	return b
}

func testServices(t *testing.T, relayURL string) *services {
	t.Helper()

	store, err := results.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return &services{
		bank:  questions.NewSource(testBank(t)),
		store: store,
		relay: results.NewRelay(relayURL, time.Second),
	}
}

func startServer(t *testing.T, cfg *Config, svc *services) (*httptest.Server, *GameManager) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mux, gm := newRouter(ctx, cfg, svc)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, gm
}
