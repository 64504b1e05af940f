// Package app implements the tweet ownership and lifecycle workflow. Every
// operation that touches a specific tweet takes the caller explicitly and
// folds the ownership check into the store lookup.
package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"microblog/internal/metrics"
	"microblog/internal/util"
	"microblog/pkg/auth"
	"microblog/pkg/domain"
	"microblog/pkg/events"
	"microblog/pkg/storage"
	"microblog/pkg/store"
)

// Config wires required dependencies for the core application.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Media    storage.ObjectStore
	Events   events.Publisher
}

// App is the core application service wiring storage, sessions, media and
// event publishing together.
type App struct {
	store    store.Store
	sessions store.SessionStore
	media    storage.ObjectStore
	events   events.Publisher
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &App{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		media:    cfg.Media,
		events:   publisher,
	}, nil
}

// MediaUpload describes an incoming attachment from a multipart form.
type MediaUpload struct {
	Filename    string
	ContentType string
	SizeBytes   int64
	Reader      io.Reader
}

// ListTweets returns all tweets, most recent first.
func (a *App) ListTweets(ctx context.Context) ([]domain.Tweet, error) {
	_ = ctx
	tweets, err := a.store.ListTweets()
	if err != nil {
		return nil, fmt.Errorf("list tweets: %w", err)
	}
	return tweets, nil
}

// SearchTweets returns tweets whose text contains the query, ignoring case.
func (a *App) SearchTweets(ctx context.Context, query string) ([]domain.Tweet, error) {
	_ = ctx
	tweets, err := a.store.SearchTweets(query)
	if err != nil {
		return nil, fmt.Errorf("search tweets: %w", err)
	}
	return tweets, nil
}

// GetOwnTweet resolves a tweet by (id, caller). A tweet that does not exist
// and a tweet owned by another user both yield ErrTweetNotFound.
func (a *App) GetOwnTweet(ctx context.Context, caller domain.User, tweetID string) (domain.Tweet, error) {
	_ = ctx
	tweet, ok, err := a.store.GetTweetByOwner(tweetID, caller.ID)
	if err != nil {
		return domain.Tweet{}, fmt.Errorf("get tweet: %w", err)
	}
	if !ok {
		return domain.Tweet{}, ErrTweetNotFound
	}
	return tweet, nil
}

// CreateTweet persists a new tweet owned by the caller. The owner is always
// the authenticated caller; no submitted value can override it.
func (a *App) CreateTweet(ctx context.Context, caller domain.User, text string, upload *MediaUpload) (domain.Tweet, error) {
	now := time.Now().UTC()
	tweet := domain.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   caller.ID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if upload != nil {
		media, err := a.storeMedia(ctx, tweet.ID, upload)
		if err != nil {
			return domain.Tweet{}, err
		}
		tweet.Media = media
	}
	if err := a.store.SaveTweet(tweet); err != nil {
		return domain.Tweet{}, fmt.Errorf("save tweet: %w", err)
	}
	a.publish(ctx, events.TweetCreated, tweet)
	return tweet, nil
}

// EditTweet overwrites the text (and media, when re-uploaded) of the
// caller's own tweet. The owner is re-asserted on save.
func (a *App) EditTweet(ctx context.Context, caller domain.User, tweetID, text string, upload *MediaUpload) (domain.Tweet, error) {
	tweet, err := a.GetOwnTweet(ctx, caller, tweetID)
	if err != nil {
		return domain.Tweet{}, err
	}
	tweet.Text = text
	tweet.OwnerID = caller.ID
	tweet.UpdatedAt = time.Now().UTC()
	if upload != nil {
		if tweet.Media != nil {
			a.deleteMedia(ctx, tweet.Media)
		}
		media, err := a.storeMedia(ctx, tweet.ID, upload)
		if err != nil {
			return domain.Tweet{}, err
		}
		tweet.Media = media
	}
	if err := a.store.SaveTweet(tweet); err != nil {
		return domain.Tweet{}, fmt.Errorf("save tweet: %w", err)
	}
	a.publish(ctx, events.TweetUpdated, tweet)
	return tweet, nil
}

// DeleteTweet removes the caller's own tweet and its attached media.
func (a *App) DeleteTweet(ctx context.Context, caller domain.User, tweetID string) error {
	tweet, err := a.GetOwnTweet(ctx, caller, tweetID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteTweet(tweet.ID, caller.ID); err != nil {
		return fmt.Errorf("delete tweet: %w", err)
	}
	if tweet.Media != nil {
		a.deleteMedia(ctx, tweet.Media)
	}
	a.publish(ctx, events.TweetDeleted, tweet)
	return nil
}

// MediaURL resolves a browser-fetchable URL for a tweet's attachment. It
// returns "" when the tweet has none or no object store is configured.
func (a *App) MediaURL(ctx context.Context, tweet domain.Tweet) string {
	if tweet.Media == nil || a.media == nil {
		return ""
	}
	url, err := a.media.URL(ctx, tweet.Media.Key)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("resolve media url", "tweet_id", tweet.ID, "err", err)
		return ""
	}
	return url
}

// Register creates a user with a bcrypt password hash and establishes a
// login session. Duplicate usernames yield ErrUsernameTaken.
func (a *App) Register(ctx context.Context, username, email, password string) (domain.User, string, error) {
	_ = ctx
	username = strings.TrimSpace(username)
	taken, err := a.store.HasUsername(username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check username: %w", err)
	}
	if taken {
		return domain.User{}, "", ErrUsernameTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials and establishes a session.
func (a *App) Login(ctx context.Context, username, password string) (domain.User, string, error) {
	_ = ctx
	user, ok, err := a.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Logout deletes the session behind the token.
func (a *App) Logout(ctx context.Context, token string) error {
	_ = ctx
	return a.sessions.DeleteSession(token)
}

// UserByID returns a user by ID.
func (a *App) UserByID(ctx context.Context, id string) (domain.User, bool, error) {
	_ = ctx
	return a.store.GetUserByID(id)
}

// UserByToken resolves a session token to its user.
func (a *App) UserByToken(ctx context.Context, token string) (domain.User, bool, error) {
	_ = ctx
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	return user, true, nil
}

func (a *App) storeMedia(ctx context.Context, tweetID string, upload *MediaUpload) (*domain.Media, error) {
	if a.media == nil {
		return nil, fmt.Errorf("media storage is not configured")
	}
	filename := safeFilename(upload.Filename)
	key := "tweets/" + tweetID + "/" + filename
	if err := a.media.Put(ctx, key, upload.Reader, upload.SizeBytes, upload.ContentType); err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}
	return &domain.Media{
		Key:         key,
		Filename:    filename,
		ContentType: upload.ContentType,
		SizeBytes:   upload.SizeBytes,
	}, nil
}

// deleteMedia is best-effort; a dangling object must not fail the operation.
func (a *App) deleteMedia(ctx context.Context, media *domain.Media) {
	if a.media == nil {
		return
	}
	if err := a.media.Delete(ctx, media.Key); err != nil {
		util.LoggerFromContext(ctx).Warn("delete media object", "key", media.Key, "err", err)
	}
}

// publish is best-effort; the store write is the source of truth.
func (a *App) publish(ctx context.Context, eventType string, tweet domain.Tweet) {
	metrics.TweetEventsTotal.WithLabelValues(eventType).Inc()
	if err := a.events.PublishTweetEvent(ctx, eventType, tweet); err != nil {
		util.LoggerFromContext(ctx).Warn("publish tweet event", "type", eventType, "tweet_id", tweet.ID, "err", err)
	}
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload"
	}
	return name
}
