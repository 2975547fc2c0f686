package assistant

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
	"github.com/72rs3/pharmacy-assistant-sub000/replies"
)

// Action types the assistant attaches to its messages.
const (
	ActionSearchMedicine  = "search_medicine"
	ActionEscalate        = "escalate_to_pharmacist"
	ActionBookAppointment = "book_appointment"
	ActionOpenBooking     = "open_booking"
	ActionPlaceRxOrder    = "place_rx_order"
	ActionAddToCart       = "add_to_cart"
	ActionUploadRx        = "upload_prescription"
)

// SelectSuggestion routes a clicked quick reply or suggestion chip.
// trigger is the message that offered it, nil when the caller no longer
// knows. Routing order matters: explicit search phrases go out verbatim,
// well-known chips open forms or navigate, bare medicine names offered by
// a search turn get the "Search " prefix, and everything else is sent as
// plain user text.
func (c *Controller) SelectSuggestion(ctx context.Context, text string, trigger *models.ChatMessage) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	lower := strings.ToLower(text)

	if _, ok := replies.SearchQuery(text); ok {
		c.SendUserMessage(ctx, text)
		return
	}
	if strings.Contains(lower, "appointment") {
		c.OpenAppointmentForm(ctx, "")
		return
	}
	if strings.Contains(lower, "contact") {
		c.navigate("contact")
		return
	}
	if strings.Contains(lower, "shop") {
		c.navigate("shop")
		return
	}
	if trigger != nil && offersMedicineNames(trigger) && looksLikeMedicineName(text) {
		c.SendUserMessage(ctx, "Search "+text)
		return
	}
	c.SendUserMessage(ctx, text)
}

// offersMedicineNames reports whether the triggering message was a search
// flavored turn whose chips are likely bare product names.
func offersMedicineNames(m *models.ChatMessage) bool {
	if searchLikeIntent(m.Intent) {
		return true
	}
	lower := strings.ToLower(m.Text)
	return strings.Contains(lower, "did you mean") || strings.Contains(lower, "medicine card")
}

// answerWords are chips that answer a question rather than name a product.
var answerWords = map[string]bool{
	"yes": true, "no": true, "ok": true, "okay": true, "maybe": true,
	"mild": true, "moderate": true, "severe": true, "none": true,
	"other": true, "today": true, "tomorrow": true, "morning": true,
	"afternoon": true, "evening": true,
}

var reNameToken = regexp.MustCompile(`^[a-zA-Z][a-zA-Z '\-]*$`)

// looksLikeMedicineName classifies a chip as a bare product name. The
// boundaries are deliberately loose: short alphabetic phrases pass,
// yes/no/severity style answers and anything sentence-like do not.
func looksLikeMedicineName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 40 {
		return false
	}
	if !reNameToken.MatchString(s) {
		return false
	}
	words := strings.Fields(strings.ToLower(s))
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	if answerWords[words[0]] {
		return false
	}
	return true
}

// InvokeAction dispatches a structured action attached to a message.
// Unknown action types are logged and ignored.
func (c *Controller) InvokeAction(ctx context.Context, action models.MessageAction) {
	switch action.Type {
	case ActionSearchMedicine:
		query := payloadString(action.Payload, "query", "name")
		if query == "" {
			query = strings.TrimSpace(action.Label)
		}
		if query == "" {
			return
		}
		c.SendUserMessage(ctx, "Search "+query)
	case ActionEscalate:
		c.OpenIntakeForm()
	case ActionBookAppointment, ActionOpenBooking:
		c.OpenAppointmentForm(ctx, payloadString(action.Payload, "date"))
	case ActionPlaceRxOrder:
		c.OpenRxOrderForm(payloadString(action.Payload, "medicine_id", "medicineId"))
	case ActionAddToCart:
		c.addToCart(ctx, action)
	case ActionUploadRx:
		c.OpenUploadForm(payloadString(action.Payload, "medicine_id", "medicineId"))
	default:
		log.Printf("[Assistant] ignoring unknown action type %q", action.Type)
	}
}

func (c *Controller) addToCart(ctx context.Context, action models.MessageAction) {
	medicineID := payloadString(action.Payload, "medicine_id", "medicineId")
	if medicineID == "" {
		log.Printf("[Assistant] add_to_cart action without a medicine id")
		return
	}
	qty := payloadInt(action.Payload, "qty")
	if qty <= 0 {
		qty = 1
	}

	c.mu.Lock()
	tenantID := c.tenantID
	c.mu.Unlock()

	if tenantID == "" {
		id, err := c.api.ResolveCurrentTenantID(ctx)
		if err != nil {
			log.Printf("[Assistant] tenant lookup failed: %v", err)
			platformErrorsTotal.WithLabelValues("resolve_tenant").Inc()
			c.mu.Lock()
			c.appendLocked(c.failureMessage(err))
			snap := c.snapshotLocked()
			c.mu.Unlock()
			c.publish(snap)
			return
		}
		c.mu.Lock()
		c.tenantID = id
		c.mu.Unlock()
		tenantID = id
	}

	item, err := c.api.AddToCart(ctx, tenantID, medicineID, qty)

	c.mu.Lock()
	if err != nil {
		log.Printf("[Assistant] add to cart failed: %v", err)
		platformErrorsTotal.WithLabelValues("add_to_cart").Inc()
		c.appendLocked(c.failureMessage(err))
	} else {
		c.mergeCartLocked(models.CartItem{
			MedicineID: item.MedicineID,
			Name:       item.Name,
			Price:      item.Price,
			Qty:        qty,
		})
		name := item.Name
		if name == "" {
			name = "the medicine"
		}
		c.appendLocked(newMessage(models.SenderAI, fmt.Sprintf("Added %s to your cart.", name)))
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// mergeCartLocked folds a confirmed line into the local cart mirror.
// Callers hold c.mu.
func (c *Controller) mergeCartLocked(item models.CartItem) {
	for i := range c.cart {
		if c.cart[i].MedicineID == item.MedicineID {
			c.cart[i].Qty += item.Qty
			c.cart[i].Price = item.Price
			if item.Name != "" {
				c.cart[i].Name = item.Name
			}
			return
		}
	}
	c.cart = append(c.cart, item)
}

func payloadString(payload map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func payloadInt(payload map[string]interface{}, key string) int {
	switch n := payload[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
