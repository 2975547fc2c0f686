package assistant

import "github.com/72rs3/pharmacy-assistant-sub000/models"

// Timeline is the ordered, client-visible log of conversation turns. It is
// not safe for concurrent use on its own; the controller's lock guards it.
type Timeline struct {
	entries []models.ChatMessage
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Append adds a message at the end. A message carrying an embedded form
// evicts any earlier live form of the same kind, so at most one form of
// each kind is ever open.
func (t *Timeline) Append(msg models.ChatMessage) {
	if msg.EmbeddedForm != "" {
		t.RemoveForm(msg.EmbeddedForm)
	}
	t.entries = append(t.entries, msg)
}

// RemoveForm drops the live embedded-form message of the given kind.
func (t *Timeline) RemoveForm(kind models.FormKind) {
	kept := t.entries[:0]
	for _, m := range t.entries {
		if m.EmbeddedForm == kind {
			continue
		}
		kept = append(kept, m)
	}
	t.entries = kept
}

// ReplaceTail keeps the first keep entries and swaps everything after them
// for msgs. The poll loop uses it to adopt a fetched history while leaving
// the local welcome message in place.
func (t *Timeline) ReplaceTail(keep int, msgs []models.ChatMessage) {
	if keep < 0 {
		keep = 0
	}
	if keep > len(t.entries) {
		keep = len(t.entries)
	}
	t.entries = append(t.entries[:keep:keep], msgs...)
}

// Messages returns a copy of the entries in display order.
func (t *Timeline) Messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(t.entries))
	copy(out, t.entries)
	return out
}

// Find returns the entry with the given id.
func (t *Timeline) Find(id string) (models.ChatMessage, bool) {
	for _, m := range t.entries {
		if m.ID == id {
			return m, true
		}
	}
	return models.ChatMessage{}, false
}

// OpenForms lists the kinds of embedded forms currently live.
func (t *Timeline) OpenForms() []models.FormKind {
	var kinds []models.FormKind
	for _, m := range t.entries {
		if m.EmbeddedForm != "" {
			kinds = append(kinds, m.EmbeddedForm)
		}
	}
	return kinds
}

func (t *Timeline) Len() int {
	return len(t.entries)
}

// Clear empties the timeline.
func (t *Timeline) Clear() {
	t.entries = nil
}
