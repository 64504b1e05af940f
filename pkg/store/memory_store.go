package store

import (
	"sort"
	"strings"
	"sync"

	"microblog/pkg/domain"
)

// MemoryStore keeps users and tweets in-process. It mirrors GormStore
// behavior so handlers can be exercised without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	tweets   map[string]domain.Tweet
	orders   []string
	users    map[string]domain.User // key: user ID
	username map[string]string      // username -> user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tweets:   make(map[string]domain.Tweet),
		users:    make(map[string]domain.User),
		username: make(map[string]string),
	}
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.username[u.Username] = u.ID
	return nil
}

// HasUsername checks if a username is taken.
func (m *MemoryStore) HasUsername(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.username[username]
	return ok, nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.username[username]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveTweet stores or replaces a tweet and tracks insertion order.
func (m *MemoryStore) SaveTweet(t domain.Tweet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tweets[t.ID]; !exists {
		m.orders = append(m.orders, t.ID)
	}
	m.tweets[t.ID] = t
	return nil
}

// GetTweetByOwner resolves a tweet by (id, owner); a foreign tweet reads as
// missing.
func (m *MemoryStore) GetTweetByOwner(id, ownerID string) (domain.Tweet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tweets[id]
	if !ok || t.OwnerID != ownerID {
		return domain.Tweet{}, false, nil
	}
	return t, true, nil
}

// ListTweets returns all tweets, most recent first.
func (m *MemoryStore) ListTweets() ([]domain.Tweet, error) {
	return m.collect(func(domain.Tweet) bool { return true }), nil
}

// SearchTweets performs a case-insensitive substring match on tweet text.
func (m *MemoryStore) SearchTweets(query string) ([]domain.Tweet, error) {
	needle := strings.ToLower(query)
	return m.collect(func(t domain.Tweet) bool {
		return strings.Contains(strings.ToLower(t.Text), needle)
	}), nil
}

func (m *MemoryStore) collect(match func(domain.Tweet) bool) []domain.Tweet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Tweet, 0, len(m.orders))
	// Walk insertion order backwards so equal timestamps keep newest-first.
	for i := len(m.orders) - 1; i >= 0; i-- {
		if t, ok := m.tweets[m.orders[i]]; ok && match(t) {
			res = append(res, t)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res
}

// DeleteTweet removes a tweet if it belongs to the owner.
func (m *MemoryStore) DeleteTweet(id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tweets[id]
	if !ok || t.OwnerID != ownerID {
		return nil
	}
	delete(m.tweets, id)
	filtered := m.orders[:0]
	for _, item := range m.orders {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.orders = filtered
	return nil
}
