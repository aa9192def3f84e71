package store

import (
	"context"
	"sync"
	"time"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

// MemoryToken is an in-memory token store. Tokens survive only as long as
// the process; use the relational store when restarts must not invalidate
// issued tokens.
type MemoryToken struct {
	mu     sync.RWMutex
	tokens map[string]plugin.Token
}

// NewMemoryToken builds the in-memory token store.
func NewMemoryToken() plugin.Plugin {
	return &MemoryToken{}
}

// Configure accepts no options.
func (s *MemoryToken) Configure(map[string]string) {}

// Validate reports no missing options.
func (s *MemoryToken) Validate() []string { return nil }

// InitConnection initializes the token map.
func (s *MemoryToken) InitConnection() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = make(map[string]plugin.Token)

	return nil
}

// Release drops the token map, idempotently.
func (s *MemoryToken) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = nil
}

// Save persists an issued token.
func (s *MemoryToken) Save(_ context.Context, token plugin.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token.Signed] = token

	return nil
}

// Exists reports store membership of the signed string.
func (s *MemoryToken) Exists(_ context.Context, signed string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tokens[signed]

	return ok, nil
}

// Get returns the stored token with its derived fields.
func (s *MemoryToken) Get(_ context.Context, signed string) (plugin.Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[signed]

	return t, ok, nil
}

// Delete revokes a token.
func (s *MemoryToken) Delete(_ context.Context, signed string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[signed]; !ok {
		return false, nil
	}

	delete(s.tokens, signed)

	return true, nil
}

// DeleteExpired removes every token expired at now.
func (s *MemoryToken) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64

	for signed, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, signed)
			n++
		}
	}

	return n, nil
}
