package models

import "time"

// SenderType identifies who authored a conversation entry.
type SenderType string

const (
	SenderUser       SenderType = "USER"
	SenderAI         SenderType = "AI"
	SenderSystem     SenderType = "SYSTEM"
	SenderPharmacist SenderType = "PHARMACIST"
)

// FormKind tags a message that carries an embedded sub-form.
type FormKind string

const (
	FormIntake      FormKind = "intake"
	FormAppointment FormKind = "appointment"
	FormRxOrder     FormKind = "rx_order"
	FormUpload      FormKind = "upload"
)

// MessageAction is a structured, clickable operation attached to a message.
type MessageAction struct {
	Type    string                 `json:"type"`
	Label   string                 `json:"label"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ProductCard is a structured result summary (a matched medicine) rendered
// inside an assistant message.
type ProductCard struct {
	MedicineID string  `json:"medicine_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Stock      int     `json:"stock,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
}

// Freshness carries the catalog timestamps shown next to search results.
type Freshness struct {
	DataLastUpdatedAt *time.Time `json:"data_last_updated_at,omitempty"`
	IndexedAt         *time.Time `json:"indexed_at,omitempty"`
}

// ChatMessage represents one conversation turn in the timeline.
type ChatMessage struct {
	ID           string          `json:"id"`
	SenderType   SenderType      `json:"sender_type"`
	Text         string          `json:"text"`
	Timestamp    time.Time       `json:"timestamp"`
	Intent       string          `json:"intent,omitempty"`
	Actions      []MessageAction `json:"actions,omitempty"`
	QuickReplies []string        `json:"quick_replies,omitempty"`
	Suggestions  []string        `json:"suggestions,omitempty"`
	Cards        []ProductCard   `json:"cards,omitempty"`
	Freshness    *Freshness      `json:"freshness,omitempty"`
	EmbeddedForm FormKind        `json:"embedded_form,omitempty"`
}

// ChatSession holds the conversation identity and escalation status.
// ChatID is a stable anonymous identity created lazily by the platform on
// the first assistant reply; SessionID identifies the current thread and
// may rotate when a new topic starts.
type ChatSession struct {
	ChatID    string `json:"chat_id"`
	SessionID string `json:"session_id"`
	Escalated bool   `json:"escalated"`
}

// CartItem mirrors one add-to-cart result into local widget state.
type CartItem struct {
	MedicineID string  `json:"medicine_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Qty        int     `json:"qty"`
}
