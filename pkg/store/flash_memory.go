package store

import (
	"sync"

	"microblog/pkg/domain"
)

// MemoryFlashStore queues flash messages in-process.
type MemoryFlashStore struct {
	mu     sync.Mutex
	queues map[string][]domain.FlashMessage
}

// NewMemoryFlashStore initializes an empty flash store.
func NewMemoryFlashStore() *MemoryFlashStore {
	return &MemoryFlashStore{queues: make(map[string][]domain.FlashMessage)}
}

// Push appends a message to the scope's queue.
func (m *MemoryFlashStore) Push(scope string, msg domain.FlashMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[scope] = append(m.queues[scope], msg)
	return nil
}

// Pop drains and returns all queued messages for the scope.
func (m *MemoryFlashStore) Pop(scope string) ([]domain.FlashMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.queues[scope]
	delete(m.queues, scope)
	return msgs, nil
}
