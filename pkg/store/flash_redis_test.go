package store

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"microblog/pkg/domain"
)

func TestRedisFlashStorePopDrainsQueue(t *testing.T) {
	r := miniredis.RunT(t)
	s := NewRedisFlashStore(r.Addr(), "")

	if err := s.Push("scope-1", domain.FlashMessage{Level: domain.FlashSuccess, Message: "first"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Push("scope-1", domain.FlashMessage{Level: domain.FlashWarning, Message: "second"}); err != nil {
		t.Fatalf("push: %v", err)
	}

	msgs, err := s.Pop("scope-1")
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Message != "first" || msgs[0].Level != domain.FlashSuccess {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Message != "second" || msgs[1].Level != domain.FlashWarning {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}

	msgs, err = s.Pop("scope-1")
	if err != nil {
		t.Fatalf("second pop: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("pop must drain the queue, got %d leftover", len(msgs))
	}
}

func TestRedisFlashStoreScopesAreIsolated(t *testing.T) {
	r := miniredis.RunT(t)
	s := NewRedisFlashStore(r.Addr(), "")

	if err := s.Push("scope-a", domain.FlashMessage{Level: domain.FlashError, Message: "only a"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	msgs, err := s.Pop("scope-b")
	if err != nil {
		t.Fatalf("pop other scope: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("scope leak: %+v", msgs)
	}
}
