package assistant

import (
	"strings"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

// The platform signals handover through system messages carrying these
// exact texts. Anything else leaves the handler state untouched.
const (
	MarkerEscalated = "Escalated to pharmacist"
	MarkerClosed    = "Consultation closed"
	MarkerExpired   = "Session expired due to inactivity"
)

// HandlerState says who currently answers the user.
type HandlerState string

const (
	StateAIHandled HandlerState = "AI_HANDLED"
	StateEscalated HandlerState = "ESCALATED"
)

func stateOf(escalated bool) HandlerState {
	if escalated {
		return StateEscalated
	}
	return StateAIHandled
}

// ApplyMarker advances the state for one system message text.
func ApplyMarker(state HandlerState, text string) HandlerState {
	switch strings.TrimSpace(text) {
	case MarkerEscalated:
		return StateEscalated
	case MarkerClosed, MarkerExpired:
		return StateAIHandled
	}
	return state
}

// DeriveState folds the system markers of a fetched history, oldest first,
// over the given starting state. AI, user and pharmacist turns never move
// the state; only system markers do.
func DeriveState(initial HandlerState, msgs []models.ChatMessage) HandlerState {
	state := initial
	for _, m := range msgs {
		if m.SenderType != models.SenderSystem {
			continue
		}
		state = ApplyMarker(state, m.Text)
	}
	return state
}
