package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

// SendChatMessage posts one AI-handled turn. The platform mints the chat and
// session ids lazily, so the response echoes whichever ids now apply.
func (c *Client) SendChatMessage(ctx context.Context, text, sessionID string) (*ChatResponse, error) {
	var out ChatResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/assistant/chat", ChatRequest{Message: text, SessionID: sessionID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PostEscalatedMessage delivers a user message into the pharmacist-handled
// thread. The platform answers with a gone/expired signal once the session
// has timed out; callers detect that with IsSessionGone.
func (c *Client) PostEscalatedMessage(ctx context.Context, sessionID, text string) error {
	path := fmt.Sprintf("/v1/assistant/sessions/%s/messages", url.PathEscape(sessionID))
	return c.doJSON(ctx, http.MethodPost, path, escalatedMessageRequest{Text: text}, nil)
}

// FetchSessionMessages returns the full message history for a session, used
// by the initial load and the escalation poll.
func (c *Client) FetchSessionMessages(ctx context.Context, sessionID string) ([]SessionEntry, error) {
	path := fmt.Sprintf("/v1/assistant/sessions/%s/messages", url.PathEscape(sessionID))
	var out sessionMessagesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SubmitEscalationIntake posts the triage form and returns the system
// message confirming the handover.
func (c *Client) SubmitEscalationIntake(ctx context.Context, sessionID string, draft models.IntakeDraft) (string, error) {
	path := fmt.Sprintf("/v1/assistant/sessions/%s/escalate", url.PathEscape(sessionID))
	req := IntakeRequest{
		Name:        draft.Name,
		Phone:       draft.Phone,
		MainConcern: draft.MainConcern,
	}
	var out IntakeResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return "", err
	}
	return out.SystemMessage, nil
}
