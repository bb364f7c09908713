package dialogue

import (
	"context"
	"errors"
	"sync"

	"github.com/codegangsta/packagesbot/internal/types"
)

type sent struct {
	ChatID int64
	Reply  Reply
}

type reaction struct {
	ChatID    int64
	MessageID int64
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sent
	reactions []reaction
	failChat  int64
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, reply Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failChat != 0 && chatID == m.failChat {
		return errors.New("chat not found")
	}
	m.sent = append(m.sent, sent{ChatID: chatID, Reply: reply})
	return nil
}

func (m *fakeMessenger) React(_ context.Context, chatID int64, messageID int64, _ types.Reaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, reaction{ChatID: chatID, MessageID: messageID})
	return nil
}

// texts returns the texts sent to one chat, in order
func (m *fakeMessenger) texts(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s.Reply.Text)
		}
	}
	return out
}

func (m *fakeMessenger) last(chatID int64) Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].ChatID == chatID {
			return m.sent[i].Reply
		}
	}
	return Reply{}
}

func (m *fakeMessenger) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.reactions = nil
}

type searchCall struct {
	Platform types.Platform
	Query    string
	Page     int
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	results map[int]types.PagedResult // by page
	err     error
}

func (s *fakeSearcher) Search(_ context.Context, platform types.Platform, query string, page int) (types.PagedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, searchCall{Platform: platform, Query: query, Page: page})
	if s.err != nil {
		return types.PagedResult{}, s.err
	}
	if r, ok := s.results[page]; ok {
		return r, nil
	}
	return types.PagedResult{Text: "\n- **pkg**: a package", PerPage: 10}, nil
}

func (s *fakeSearcher) lastCall() searchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return searchCall{}
	}
	return s.calls[len(s.calls)-1]
}

func (s *fakeSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
