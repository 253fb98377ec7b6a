/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package questions

import "sync"

// Source holds the bank currently used for new boards. Boards already drawn
// keep their questions when the bank is swapped.
type Source struct {
	mu   sync.RWMutex
	bank *Bank
}

func NewSource(b *Bank) *Source {
	return &Source{bank: b}
}

func (s *Source) Current() *Bank {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bank
}

func (s *Source) Set(b *Bank) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bank = b
}
