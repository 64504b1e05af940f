package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"microblog/pkg/domain"
	"microblog/pkg/storage"
	"microblog/pkg/store"
)

func newTestApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	media, err := storage.NewFileStore(t.TempDir(), "/media/")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	a, err := New(Config{
		Store:    st,
		Sessions: store.NewMemorySessionStore(),
		Media:    media,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, st
}

func registerUser(t *testing.T, a *App, username string) domain.User {
	t.Helper()
	user, token, err := a.Register(context.Background(), username, "", "supersecret")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if token == "" {
		t.Fatalf("expected a session token for %s", username)
	}
	return user
}

func TestCreateTweetForcesOwnership(t *testing.T) {
	a, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")

	tweet, err := a.CreateTweet(context.Background(), alice, "hello world", nil)
	if err != nil {
		t.Fatalf("create tweet: %v", err)
	}
	if tweet.OwnerID != alice.ID {
		t.Fatalf("owner must be the caller, got %s", tweet.OwnerID)
	}
	if tweet.ID == "" || tweet.CreatedAt.IsZero() {
		t.Fatalf("tweet missing identity or timestamp: %+v", tweet)
	}
}

func TestEditAndDeleteAreOwnerOnly(t *testing.T) {
	a, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	bob := registerUser(t, a, "bob")
	ctx := context.Background()

	tweet, err := a.CreateTweet(ctx, alice, "hello world", nil)
	if err != nil {
		t.Fatalf("create tweet: %v", err)
	}

	if _, err := a.GetOwnTweet(ctx, bob, tweet.ID); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("foreign lookup: expected ErrTweetNotFound, got %v", err)
	}
	if _, err := a.EditTweet(ctx, bob, tweet.ID, "hijacked", nil); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("foreign edit: expected ErrTweetNotFound, got %v", err)
	}
	if err := a.DeleteTweet(ctx, bob, tweet.ID); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("foreign delete: expected ErrTweetNotFound, got %v", err)
	}

	got, err := a.EditTweet(ctx, alice, tweet.ID, "edited", nil)
	if err != nil {
		t.Fatalf("owner edit: %v", err)
	}
	if got.Text != "edited" || got.OwnerID != alice.ID {
		t.Fatalf("unexpected tweet after edit: %+v", got)
	}

	if err := a.DeleteTweet(ctx, alice, tweet.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := a.GetOwnTweet(ctx, alice, tweet.ID); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("deleted tweet must be not found for its owner, got %v", err)
	}
	tweets, err := a.ListTweets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tweets) != 0 {
		t.Fatalf("deleted tweet still listed: %+v", tweets)
	}
}

func TestSearchTweets(t *testing.T) {
	a, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	ctx := context.Background()

	if _, err := a.CreateTweet(ctx, alice, "Concatenate strings", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := a.SearchTweets(ctx, "CAT")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	got, err = a.SearchTweets(ctx, "dog")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestCreateTweetWithMedia(t *testing.T) {
	a, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	ctx := context.Background()

	tweet, err := a.CreateTweet(ctx, alice, "picture", &MediaUpload{
		Filename:    "cat photo.png",
		ContentType: "image/png",
		SizeBytes:   9,
		Reader:      strings.NewReader("png-bytes"),
	})
	if err != nil {
		t.Fatalf("create with media: %v", err)
	}
	if tweet.Media == nil {
		t.Fatalf("expected media on tweet")
	}
	if tweet.Media.Filename != "cat_photo.png" {
		t.Fatalf("unexpected filename: %s", tweet.Media.Filename)
	}
	if !strings.HasPrefix(tweet.Media.Key, "tweets/"+tweet.ID+"/") {
		t.Fatalf("unexpected media key: %s", tweet.Media.Key)
	}
	if url := a.MediaURL(ctx, tweet); url == "" {
		t.Fatalf("expected media url")
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	a, _ := newTestApp(t)
	registerUser(t, a, "alice")
	if _, _, err := a.Register(context.Background(), "alice", "", "othersecret"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRegisterNeverStoresPlaintextPassword(t *testing.T) {
	a, st := newTestApp(t)
	user := registerUser(t, a, "alice")

	stored, ok, err := st.GetUserByID(user.ID)
	if err != nil || !ok {
		t.Fatalf("stored user missing: ok=%v err=%v", ok, err)
	}
	if stored.PasswordHash == "supersecret" || strings.Contains(stored.PasswordHash, "supersecret") {
		t.Fatalf("plaintext password persisted")
	}
	if stored.PasswordHash == "" {
		t.Fatalf("expected a password hash")
	}
}

func TestLoginAndLogout(t *testing.T) {
	a, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	ctx := context.Background()

	user, token, err := a.Login(ctx, "alice", "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != alice.ID {
		t.Fatalf("unexpected user: %+v", user)
	}

	got, ok, err := a.UserByToken(ctx, token)
	if err != nil || !ok || got.ID != alice.ID {
		t.Fatalf("user by token failed: ok=%v err=%v", ok, err)
	}

	if err := a.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, _ := a.UserByToken(ctx, token); ok {
		t.Fatalf("token still valid after logout")
	}

	if _, _, err := a.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := a.Login(ctx, "nobody", "supersecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
