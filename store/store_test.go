package store

import (
	"context"
	"errors"
	"testing"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := m.Set(ctx, "chat_id", "abc"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, err := m.Get(ctx, "chat_id")
	if err != nil || v != "abc" {
		t.Fatalf("expected abc, got %q err=%v", v, err)
	}

	if err := m.Delete(ctx, "chat_id"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := m.Get(ctx, "chat_id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestIdentity_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	ident := NewIdentity(NewMemory())

	// Empty store degrades to "no prior session".
	sess, err := ident.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load on empty store: %v", err)
	}
	if sess.ChatID != "" || sess.SessionID != "" {
		t.Fatalf("expected empty session, got %+v", sess)
	}

	want := models.ChatSession{ChatID: "chat-1", SessionID: "sess-9"}
	if err := ident.SaveSession(ctx, want); err != nil {
		t.Fatalf("save session: %v", err)
	}
	got, err := ident.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if got.ChatID != want.ChatID || got.SessionID != want.SessionID {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := ident.ClearSession(ctx); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	got, _ = ident.LoadSession(ctx)
	if got.ChatID != "" || got.SessionID != "" {
		t.Fatalf("expected cleared session, got %+v", got)
	}
}

func TestIdentity_DraftTokens(t *testing.T) {
	ctx := context.Background()
	ident := NewIdentity(NewMemory())

	tokens, err := ident.DraftTokens(ctx)
	if err != nil || len(tokens) != 0 {
		t.Fatalf("expected no tokens on empty store, got %v err=%v", tokens, err)
	}

	if err := ident.AppendDraftTokens(ctx, []string{"tok-1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := ident.AppendDraftTokens(ctx, []string{"tok-2", "tok-3"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	tokens, _ = ident.DraftTokens(ctx)
	if len(tokens) != 3 || tokens[0] != "tok-1" || tokens[2] != "tok-3" {
		t.Fatalf("expected accumulated tokens, got %v", tokens)
	}

	if err := ident.ClearDraftTokens(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	tokens, _ = ident.DraftTokens(ctx)
	if len(tokens) != 0 {
		t.Fatalf("expected no tokens after clear, got %v", tokens)
	}
}

func TestIdentity_TrackingCodesCapped(t *testing.T) {
	ctx := context.Background()
	ident := NewIdentity(NewMemory())

	for i := 0; i < maxTrackingCodes+3; i++ {
		code := string(rune('A' + i))
		if err := ident.PushTrackingCode(ctx, code); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	codes, err := ident.TrackingCodes(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(codes) != maxTrackingCodes {
		t.Fatalf("expected cap of %d codes, got %d", maxTrackingCodes, len(codes))
	}
	// Newest first.
	if codes[0] != string(rune('A'+maxTrackingCodes+2)) {
		t.Fatalf("expected newest code first, got %v", codes)
	}
}

func TestIdentity_CorruptListDegrades(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	ident := NewIdentity(mem)

	_ = mem.Set(ctx, "rx_draft_tokens", "{not json")
	tokens, err := ident.DraftTokens(ctx)
	if err != nil || tokens != nil {
		t.Fatalf("corrupt entry should read as empty, got %v err=%v", tokens, err)
	}
}
