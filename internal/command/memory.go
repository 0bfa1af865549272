package command

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is a mutex-guarded in-process Store. It backs single-node
// deployments and tests; semantics match RedisStore.
type MemoryStore struct {
	mu    sync.RWMutex
	cells map[string]Cell
}

// NewMemoryStore creates an empty in-memory command store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cells: make(map[string]Cell)}
}

var errInvalidCommand = errors.New("invalid command")

// SetDesired implements Store.
func (s *MemoryStore) SetDesired(_ context.Context, robotID string, cmd Command, reason string) error {
	if !cmd.Valid() {
		return errInvalidCommand
	}
	if reason == "" {
		reason = ReasonManual
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[robotID] = Cell{Command: cmd, Reason: reason}
	return nil
}

// GetDesired implements Store.
func (s *MemoryStore) GetDesired(_ context.Context, robotID string) (Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cell, ok := s.cells[robotID]
	if !ok {
		return DefaultCell(), nil
	}
	return cell, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, robotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cells, robotID)
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
