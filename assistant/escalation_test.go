package assistant

import (
	"testing"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

func TestApplyMarker(t *testing.T) {
	cases := []struct {
		state HandlerState
		text  string
		want  HandlerState
	}{
		{StateAIHandled, MarkerEscalated, StateEscalated},
		{StateEscalated, MarkerClosed, StateAIHandled},
		{StateEscalated, MarkerExpired, StateAIHandled},
		{StateAIHandled, "  Escalated to pharmacist  ", StateEscalated},
		{StateEscalated, "A pharmacist will see you shortly", StateEscalated},
		{StateAIHandled, "Consultation closed", StateAIHandled},
		{StateAIHandled, "", StateAIHandled},
	}
	for _, tc := range cases {
		if got := ApplyMarker(tc.state, tc.text); got != tc.want {
			t.Fatalf("ApplyMarker(%s, %q) = %s, want %s", tc.state, tc.text, got, tc.want)
		}
	}
}

func TestDeriveStateFoldsMarkersInOrder(t *testing.T) {
	history := []models.ChatMessage{
		{SenderType: models.SenderUser, Text: "I need help"},
		{SenderType: models.SenderSystem, Text: MarkerEscalated},
		{SenderType: models.SenderPharmacist, Text: "Hello, how can I help?"},
		{SenderType: models.SenderAI, Text: "Escalated to pharmacist"}, // not a system turn
		{SenderType: models.SenderSystem, Text: MarkerClosed},
	}
	if got := DeriveState(StateAIHandled, history); got != StateAIHandled {
		t.Fatalf("expected AI_HANDLED after escalate then close, got %s", got)
	}

	if got := DeriveState(StateAIHandled, history[:3]); got != StateEscalated {
		t.Fatalf("expected ESCALATED before the closing marker, got %s", got)
	}
}

func TestDeriveStateKeepsInitialWithoutMarkers(t *testing.T) {
	history := []models.ChatMessage{
		{SenderType: models.SenderUser, Text: "still there?"},
		{SenderType: models.SenderPharmacist, Text: "yes"},
	}
	if got := DeriveState(StateEscalated, history); got != StateEscalated {
		t.Fatalf("expected a marker-free history to keep the current state, got %s", got)
	}
	if got := DeriveState(StateAIHandled, history); got != StateAIHandled {
		t.Fatalf("expected a marker-free history to keep AI_HANDLED, got %s", got)
	}
}

func TestDeriveStateIgnoresMarkerTextFromNonSystemSenders(t *testing.T) {
	history := []models.ChatMessage{
		{SenderType: models.SenderUser, Text: MarkerEscalated},
		{SenderType: models.SenderPharmacist, Text: MarkerEscalated},
	}
	if got := DeriveState(StateAIHandled, history); got != StateAIHandled {
		t.Fatalf("expected marker text from non-system senders to be inert, got %s", got)
	}
}
