// Package memory keeps transcripts in process memory. It backs local runs
// and the CLI, where nothing needs to outlive the process.
package memory

import (
	"context"
	"fmt"
	"sync"

	"mimic-assistant/internal/domain"
)

type Store struct {
	mu   sync.RWMutex
	logs map[string][]domain.Message
}

func New() *Store {
	return &Store{logs: make(map[string][]domain.Message)}
}

func (s *Store) LoadLog(_ context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneLog(s.logs[conversationID]), nil
}

// SaveTurn appends the exchange. The turn must directly follow the last
// stored one, matching the durable stores.
func (s *Store) SaveTurn(_ context.Context, turn domain.CompletedTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[turn.ConversationID]
	if stored := len(log) / 2; turn.Turns != stored+1 {
		return fmt.Errorf("memory: conversation %s has %d turns, got turn %d: %w",
			turn.ConversationID, stored, turn.Turns, domain.ErrTurnConflict)
	}
	s.logs[turn.ConversationID] = append(log, turn.User, turn.Reply)
	return nil
}
