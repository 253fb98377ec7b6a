/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/Seednode/triviabingo/questions"
)

// loadBank returns the configured question bank, or the built-in one.
// Self-check mismatches are logged but do not stop the server.
func loadBank(cfg *Config) (*questions.Bank, error) {
	bank := questions.Default()

	if cfg.questions != "" {
		var err error

		bank, err = questions.Load(cfg.questions)
		if err != nil {
			return nil, err
		}
	}

	for _, w := range bank.Warnings() {
		cfg.logger.Warnf("START: Question bank self-check: %s", w)
	}

	logf(cfg, "START: Loaded %d questions", bank.Len())

	return bank, nil
}
