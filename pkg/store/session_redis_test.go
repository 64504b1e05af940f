package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	r := miniredis.RunT(t)
	s := NewRedisSessionStore(r.Addr(), "", time.Hour)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !ok || uid != "user-1" {
		t.Fatalf("expected user-1, got %q ok=%v", uid, ok)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("deleted session still resolves")
	}
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	r := miniredis.RunT(t)
	s := NewRedisSessionStore(r.Addr(), "", time.Minute)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	r.FastForward(2 * time.Minute)
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expired session still resolves")
	}
}

func TestRedisSessionStoreUnknownToken(t *testing.T) {
	r := miniredis.RunT(t)
	s := NewRedisSessionStore(r.Addr(), "", time.Hour)
	if _, ok, err := s.GetUserIDByToken("nope"); ok || err != nil {
		t.Fatalf("unknown token: ok=%v err=%v", ok, err)
	}
}
