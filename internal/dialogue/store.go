package dialogue

import (
	"sync"

	"github.com/codegangsta/packagesbot/internal/commands"
	"github.com/codegangsta/packagesbot/internal/types"
)

// Pending is what the bot is waiting for in a chat: either the argument of a
// command that arrived without one, or a yes/no answer for the next page.
type Pending struct {
	Kind             commands.Kind // KindSearch or KindFeedback
	Platform         types.Platform
	Argument         string
	Page             int
	AwaitingArgument bool
}

// Store holds at most one Pending per chat
type Store interface {
	Get(chatID int64) (Pending, bool)
	Set(chatID int64, p Pending)
	Clear(chatID int64)
}

// MemoryStore is an in-process Store. Nothing is evicted or persisted;
// a restart drops every dialogue back to idle.
type MemoryStore struct {
	pending map[int64]Pending
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending: make(map[int64]Pending),
	}
}

// Get returns the pending dialogue for a chat
func (s *MemoryStore) Get(chatID int64) (Pending, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pending[chatID]
	return p, ok
}

// Set replaces the pending dialogue for a chat
func (s *MemoryStore) Set(chatID int64, p Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[chatID] = p
}

// Clear removes the pending dialogue for a chat
func (s *MemoryStore) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, chatID)
}

// Len returns the number of chats with a pending dialogue
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}
