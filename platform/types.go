package platform

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

// Wire shapes for the storefront platform API. Only the fields the widget
// depends on are modeled; everything else rides in the metadata bags.

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Answer            string                 `json:"answer"`
	Intent            string                 `json:"intent,omitempty"`
	SessionID         string                 `json:"session_id,omitempty"`
	ChatID            string                 `json:"chat_id,omitempty"`
	Actions           []models.MessageAction `json:"actions,omitempty"`
	Cards             []models.ProductCard   `json:"cards,omitempty"`
	QuickReplies      []string               `json:"quick_replies,omitempty"`
	Suggestions       []string               `json:"suggestions,omitempty"`
	SystemMessage     string                 `json:"system_message,omitempty"`
	DataLastUpdatedAt *time.Time             `json:"data_last_updated_at,omitempty"`
	IndexedAt         *time.Time             `json:"indexed_at,omitempty"`
}

// SessionEntry is one history/poll entry. The platform serializes message
// extras (actions, cards, replies, intent, freshness) into an opaque
// metadata bag.
type SessionEntry struct {
	ID         string                     `json:"id"`
	SenderType string                     `json:"sender_type"`
	Text       string                     `json:"text"`
	CreatedAt  time.Time                  `json:"created_at"`
	Metadata   map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Message converts the entry into a timeline message, pulling the structured
// extras out of the metadata bag. Malformed metadata values are ignored
// rather than failing the whole fetch.
func (e SessionEntry) Message() models.ChatMessage {
	msg := models.ChatMessage{
		ID:         e.ID,
		SenderType: parseSender(e.SenderType),
		Text:       e.Text,
		Timestamp:  e.CreatedAt,
	}
	if e.Metadata == nil {
		return msg
	}
	decodeMeta(e.Metadata, "intent", &msg.Intent)
	decodeMeta(e.Metadata, "actions", &msg.Actions)
	decodeMeta(e.Metadata, "quick_replies", &msg.QuickReplies)
	decodeMeta(e.Metadata, "suggestions", &msg.Suggestions)
	decodeMeta(e.Metadata, "cards", &msg.Cards)

	var fresh models.Freshness
	decodeMeta(e.Metadata, "data_last_updated_at", &fresh.DataLastUpdatedAt)
	decodeMeta(e.Metadata, "indexed_at", &fresh.IndexedAt)
	if fresh.DataLastUpdatedAt != nil || fresh.IndexedAt != nil {
		msg.Freshness = &fresh
	}
	return msg
}

func decodeMeta(bag map[string]json.RawMessage, key string, out interface{}) {
	raw, ok := bag[key]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, out)
}

func parseSender(s string) models.SenderType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER", "CLIENT":
		return models.SenderUser
	case "SYSTEM":
		return models.SenderSystem
	case "PHARMACIST", "SUPPORTER", "AGENT":
		return models.SenderPharmacist
	default:
		// AI, ASSISTANT and anything unknown render as assistant output so a
		// stray sender label can never flip escalation state.
		return models.SenderAI
	}
}

type escalatedMessageRequest struct {
	Text string `json:"text"`
}

type sessionMessagesResponse struct {
	Messages []SessionEntry `json:"messages"`
}

type IntakeRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	MainConcern string `json:"main_concern"`
}

type IntakeResponse struct {
	SystemMessage string `json:"system_message"`
}

type slotsResponse struct {
	Slots []models.Slot `json:"slots"`
}

type AppointmentRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Date          string `json:"date"`
	ScheduledTime string `json:"scheduled_time"`
	Reason        string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID           string `json:"id"`
	TrackingCode string `json:"tracking_code,omitempty"`
}

type uploadResult struct {
	DraftToken string `json:"draft_token"`
}

type RxOrderRequest struct {
	MedicineID              string   `json:"medicine_id"`
	Name                    string   `json:"name"`
	Phone                   string   `json:"phone"`
	Address                 string   `json:"address"`
	Qty                     int      `json:"qty"`
	Notes                   string   `json:"notes,omitempty"`
	DraftPrescriptionTokens []string `json:"draft_prescription_tokens"`
}

type rxOrderResponse struct {
	OrderID string `json:"order_id"`
}

type cartRequest struct {
	TenantID   string `json:"tenant_id"`
	MedicineID string `json:"medicine_id"`
	Qty        int    `json:"qty"`
}

// CartItemResponse is the platform's view of the line item just added.
type CartItemResponse struct {
	MedicineID string  `json:"medicine_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
}

type tenantResponse struct {
	ID string `json:"id"`
}
