package store

import "microblog/pkg/domain"

// Store defines persistence operations for users and tweets.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUsername(username string) (bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// tweets
	SaveTweet(domain.Tweet) error
	// GetTweetByOwner resolves a tweet by (id, owner). A missing row and a
	// row owned by someone else are both reported as not found.
	GetTweetByOwner(id, ownerID string) (domain.Tweet, bool, error)
	ListTweets() ([]domain.Tweet, error)
	SearchTweets(query string) ([]domain.Tweet, error)
	DeleteTweet(id, ownerID string) error
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// FlashStore queues one-time notifications per flash scope. Pop drains the
// queue so each message is delivered at most once.
type FlashStore interface {
	Push(scope string, msg domain.FlashMessage) error
	Pop(scope string) ([]domain.FlashMessage, error)
}
