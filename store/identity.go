package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

// Keys persisted across widget reloads.
const (
	keyChatID        = "chat_id"
	keySessionID     = "session_id"
	keyDraftTokens   = "rx_draft_tokens"
	keyTrackingCodes = "tracking_codes"
)

// maxTrackingCodes caps the "recent bookings" list.
const maxTrackingCodes = 10

// Identity wraps the raw Store with typed accessors for everything the
// widget persists between visits: the anonymous chat identity, the active
// session id, pending prescription draft tokens and recent appointment
// tracking codes.
type Identity struct {
	s Store
}

func NewIdentity(s Store) *Identity {
	return &Identity{s: s}
}

// LoadSession reads the persisted identity. A missing key is not an error;
// it just means no prior session.
func (i *Identity) LoadSession(ctx context.Context) (models.ChatSession, error) {
	var sess models.ChatSession
	chatID, err := i.s.Get(ctx, keyChatID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return sess, fmt.Errorf("load chat id: %w", err)
	}
	sessionID, err := i.s.Get(ctx, keySessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return sess, fmt.Errorf("load session id: %w", err)
	}
	sess.ChatID = chatID
	sess.SessionID = sessionID
	return sess, nil
}

// SaveSession persists the chat and session ids after a successful mutation.
func (i *Identity) SaveSession(ctx context.Context, sess models.ChatSession) error {
	if err := i.s.Set(ctx, keyChatID, sess.ChatID); err != nil {
		return fmt.Errorf("save chat id: %w", err)
	}
	if err := i.s.Set(ctx, keySessionID, sess.SessionID); err != nil {
		return fmt.Errorf("save session id: %w", err)
	}
	return nil
}

// ClearSession forgets the persisted identity (explicit reset).
func (i *Identity) ClearSession(ctx context.Context) error {
	if err := i.s.Delete(ctx, keyChatID); err != nil {
		return err
	}
	return i.s.Delete(ctx, keySessionID)
}

// DraftTokens returns the prescription draft tokens saved by earlier uploads.
func (i *Identity) DraftTokens(ctx context.Context) ([]string, error) {
	return i.getList(ctx, keyDraftTokens)
}

// AppendDraftTokens adds freshly uploaded tokens to the persisted set.
func (i *Identity) AppendDraftTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	existing, err := i.getList(ctx, keyDraftTokens)
	if err != nil {
		return err
	}
	return i.setList(ctx, keyDraftTokens, append(existing, tokens...))
}

// ClearDraftTokens drops all stored tokens, called after the Rx order that
// consumed them succeeds.
func (i *Identity) ClearDraftTokens(ctx context.Context) error {
	return i.s.Delete(ctx, keyDraftTokens)
}

// TrackingCodes returns the most recent appointment tracking codes,
// newest first.
func (i *Identity) TrackingCodes(ctx context.Context) ([]string, error) {
	return i.getList(ctx, keyTrackingCodes)
}

// PushTrackingCode prepends a tracking code, keeping the list capped.
func (i *Identity) PushTrackingCode(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	existing, err := i.getList(ctx, keyTrackingCodes)
	if err != nil {
		return err
	}
	codes := append([]string{code}, existing...)
	if len(codes) > maxTrackingCodes {
		codes = codes[:maxTrackingCodes]
	}
	return i.setList(ctx, keyTrackingCodes, codes)
}

func (i *Identity) getList(ctx context.Context, key string) ([]string, error) {
	raw, err := i.s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		// A corrupt entry degrades to "nothing stored".
		return nil, nil
	}
	return list, nil
}

func (i *Identity) setList(ctx context.Context, key string, list []string) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return i.s.Set(ctx, key, string(raw))
}
