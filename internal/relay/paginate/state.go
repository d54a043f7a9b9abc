package paginate

import (
	"errors"
	"sync"
)

// Direction of a pagination navigation request.
type Direction int

const (
	Previous Direction = iota
	Next
)

// ErrNoFurtherPages signals a navigation that would leave the valid
// index range; the caller shows a "no further pages" notice.
var ErrNoFurtherPages = errors.New("no further pages")

type stateKey struct {
	chatID    int64
	messageID int64
}

type state struct {
	pages []string
	index int
}

// StateStore tracks the pagination cursor per delivered message.
// States are created for multi-page responses and dropped when the
// message is replaced or the chat's states are cleared.
type StateStore struct {
	mu     sync.Mutex
	states map[stateKey]*state
}

// NewStateStore builds an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[stateKey]*state)}
}

// Put registers pages for a delivered message, starting at page zero.
// Single-page responses need no cursor and are ignored.
func (s *StateStore) Put(chatID, messageID int64, pages []string) {
	if len(pages) < 2 {
		return
	}
	s.mu.Lock()
	s.states[stateKey{chatID: chatID, messageID: messageID}] = &state{pages: pages}
	s.mu.Unlock()
}

// Navigate moves the cursor and returns the new page and index plus the
// page count. It returns ErrNoFurtherPages when the move would leave
// [0, pageCount-1], leaving the cursor unchanged.
func (s *StateStore) Navigate(chatID, messageID int64, dir Direction) (page string, index, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[stateKey{chatID: chatID, messageID: messageID}]
	if !ok {
		return "", 0, 0, errors.New("no pagination state for message")
	}

	next := st.index
	switch dir {
	case Previous:
		next--
	case Next:
		next++
	}
	if next < 0 || next >= len(st.pages) {
		return "", st.index, len(st.pages), ErrNoFurtherPages
	}

	st.index = next
	return st.pages[next], next, len(st.pages), nil
}

// Current returns the cursor's page without moving it.
func (s *StateStore) Current(chatID, messageID int64) (page string, index, total int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, found := s.states[stateKey{chatID: chatID, messageID: messageID}]
	if !found {
		return "", 0, 0, false
	}
	return st.pages[st.index], st.index, len(st.pages), true
}

// Delete drops the cursor for one message.
func (s *StateStore) Delete(chatID, messageID int64) {
	s.mu.Lock()
	delete(s.states, stateKey{chatID: chatID, messageID: messageID})
	s.mu.Unlock()
}

// ClearChat drops every cursor belonging to a chat and returns how many
// were removed.
func (s *StateStore) ClearChat(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.states {
		if key.chatID == chatID {
			delete(s.states, key)
			removed++
		}
	}
	return removed
}

// Len reports how many cursors are tracked.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
