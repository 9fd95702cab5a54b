// Package memory defines the per-user conversation store used by the chat
// relay and an in-process implementation of it.
package memory

import (
	"sync"
)

// Roles of stored messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	When    int64  `json:"when"`
}

// Store keeps an ordered, oldest first, message history per user.
type Store interface {
	Get(userID int64) ([]Message, error)
	Append(userID int64, msg Message) error
	// Trim drops the oldest messages so at most maxLen remain. A maxLen of
	// zero or less leaves the history untouched.
	Trim(userID int64, maxLen int) error
	// Clear removes the whole history and returns how many messages it held.
	Clear(userID int64) (int, error)
}

// InMemory is a Store that lives only as long as the process.
type InMemory struct {
	mu    sync.Mutex
	users map[int64][]Message
}

// NewInMemory returns an empty in-process store.
func NewInMemory() *InMemory {
	return &InMemory{users: make(map[int64][]Message)}
}

func (m *InMemory) Get(userID int64) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.users[userID]...), nil
}

func (m *InMemory) Append(userID int64, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = append(m.users[userID], msg)
	return nil
}

func (m *InMemory) Trim(userID int64, maxLen int) error {
	if maxLen <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hist := m.users[userID]
	if excess := len(hist) - maxLen; excess > 0 {
		m.users[userID] = append([]Message(nil), hist[excess:]...)
	}
	return nil
}

func (m *InMemory) Clear(userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.users[userID])
	delete(m.users, userID)
	return n, nil
}
