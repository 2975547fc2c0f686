package assistant

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
	"github.com/72rs3/pharmacy-assistant-sub000/platform"
	"github.com/72rs3/pharmacy-assistant-sub000/replies"
	"github.com/72rs3/pharmacy-assistant-sub000/store"
)

const (
	welcomeText = "Hi! I'm your pharmacy assistant. I can look up medicines, book appointments or connect you with a pharmacist. How can I help?"

	genericFailureText = "Something went wrong while reaching the pharmacy. Please try again."
	expiredNoticeText  = "Session expired due to inactivity. Please start a new chat."

	maxLocalTracking = 10
)

// ErrSlotTaken reports that the chosen appointment slot was booked by
// someone else. By the time it is returned the draft's time is already
// cleared and the day's slots refreshed, so the form can prompt a reselect.
var ErrSlotTaken = errors.New("assistant: selected slot is no longer available")

// Service is the slice of the pharmacy platform the controller talks to.
// *platform.Client satisfies it.
type Service interface {
	SendChatMessage(ctx context.Context, text, sessionID string) (*platform.ChatResponse, error)
	PostEscalatedMessage(ctx context.Context, sessionID, text string) error
	FetchSessionMessages(ctx context.Context, sessionID string) ([]platform.SessionEntry, error)
	SubmitEscalationIntake(ctx context.Context, sessionID string, draft models.IntakeDraft) (string, error)
	FetchAppointmentSlots(ctx context.Context, date string) ([]models.Slot, error)
	CreateAppointment(ctx context.Context, req platform.AppointmentRequest) (*platform.AppointmentResponse, error)
	UploadPrescriptionDraft(ctx context.Context, files []models.PrescriptionFile) ([]string, error)
	CreateRxOrder(ctx context.Context, req platform.RxOrderRequest) (string, error)
	AddToCart(ctx context.Context, tenantID, medicineID string, qty int) (*platform.CartItemResponse, error)
	ResolveCurrentTenantID(ctx context.Context) (string, error)
}

// Listener receives pushes from the controller. StateChanged gets a full
// snapshot after every mutation; Navigate asks the embedding page to move
// to a storefront target such as "shop" or "contact".
type Listener interface {
	StateChanged(snap Snapshot)
	Navigate(target string)
}

// Snapshot is an immutable copy of everything a rendering layer needs.
type Snapshot struct {
	Session       models.ChatSession      `json:"session"`
	State         HandlerState            `json:"state"`
	Open          bool                    `json:"open"`
	Busy          bool                    `json:"busy"`
	Messages      []models.ChatMessage    `json:"messages"`
	Intake        models.IntakeDraft      `json:"intake"`
	Appointment   models.AppointmentDraft `json:"appointment"`
	RxOrder       models.RxOrderDraft     `json:"rx_order"`
	Upload        models.UploadDraft      `json:"upload"`
	Cart          []models.CartItem       `json:"cart"`
	TrackingCodes []string                `json:"tracking_codes,omitempty"`
	OpenForms     []models.FormKind       `json:"open_forms,omitempty"`
	GlobalActions []string                `json:"global_actions"`
}

// Controller owns the conversation: the timeline, the anonymous session
// identity, the sub-form drafts and the escalation machine. Every mutation
// happens under one lock, and the lock is never held across a platform
// call; results are re-checked against the current state before they are
// applied.
type Controller struct {
	api   Service
	ident *store.Identity

	// PollInterval is how often the escalated conversation is refreshed.
	// Set it before Open; the default is 5 seconds.
	PollInterval time.Duration

	mu          sync.Mutex
	open        bool
	busy        bool
	session     models.ChatSession
	timeline    *Timeline
	intake      models.IntakeDraft
	appointment models.AppointmentDraft
	rxOrder     models.RxOrderDraft
	upload      models.UploadDraft
	cart        []models.CartItem
	tracking    []string
	tenantID    string

	pollCancel  context.CancelFunc
	pollSession string
	loadCancel  context.CancelFunc

	listeners  map[int]Listener
	nextListen int
}

func NewController(api Service, ident *store.Identity) *Controller {
	return &Controller{
		api:          api,
		ident:        ident,
		PollInterval: 5 * time.Second,
		timeline:     NewTimeline(),
		listeners:    make(map[int]Listener),
	}
}

// ChatID returns the anonymous chat identity, or "" before the platform
// assigned one. Wire it into platform.Client.Identity so every request
// carries it.
func (c *Controller) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ChatID
}

// SetTenantID presets the storefront tenant used for cart calls. Without
// it the first add-to-cart resolves the tenant from the platform.
func (c *Controller) SetTenantID(id string) {
	c.mu.Lock()
	c.tenantID = id
	c.mu.Unlock()
}

// State returns a snapshot of the current conversation.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Message returns the timeline entry with the given id.
func (c *Controller) Message(id string) (models.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline.Find(id)
}

// Subscribe registers a listener and primes it with the current state.
// The returned func unsubscribes it.
func (c *Controller) Subscribe(l Listener) func() {
	c.mu.Lock()
	id := c.nextListen
	c.nextListen++
	c.listeners[id] = l
	snap := c.snapshotLocked()
	c.mu.Unlock()

	l.StateChanged(snap)
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Open marks the widget visible, restores the persisted identity, seeds
// the welcome message and, when a session is being resumed, loads its
// history. Opening an already open widget is a no-op.
func (c *Controller) Open(ctx context.Context) {
	persisted, err := c.ident.LoadSession(ctx)
	if err != nil {
		log.Printf("[Assistant] restoring session: %v", err)
	}
	tracking, err := c.ident.TrackingCodes(ctx)
	if err != nil {
		log.Printf("[Assistant] restoring tracking codes: %v", err)
	}

	c.mu.Lock()
	if c.open {
		c.mu.Unlock()
		return
	}
	c.open = true
	if c.session.ChatID == "" {
		c.session.ChatID = persisted.ChatID
	}
	if c.session.SessionID == "" {
		// Whether a pharmacist still holds this session is not stored; the
		// history load below re-derives it from the markers.
		c.session.SessionID = persisted.SessionID
	}
	if len(tracking) > 0 {
		c.tracking = tracking
	}
	if c.timeline.Len() == 0 {
		welcome := newMessage(models.SenderAI, welcomeText)
		welcome.QuickReplies = replies.GlobalActions()
		c.appendLocked(welcome)
	}
	sessionID := c.session.SessionID
	var loadCtx context.Context
	if sessionID != "" {
		loadCtx, c.loadCancel = context.WithCancel(context.Background())
	}
	c.syncPollingLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	if sessionID != "" {
		c.loadHistory(loadCtx, sessionID)
	}
}

// Close hides the widget and stops the history load and the escalation
// poll. Conversation state is kept for the next open.
func (c *Controller) Close() {
	c.mu.Lock()
	c.open = false
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.syncPollingLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// ContinueWithAI ends an escalation locally and hands the conversation
// back to the assistant. History and identity are kept.
func (c *Controller) ContinueWithAI() {
	c.mu.Lock()
	c.session.Escalated = false
	c.syncPollingLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// Reset abandons the conversation entirely: identity, timeline and drafts
// are cleared and the persisted session is forgotten. The cart mirror and
// tracking codes survive, they belong to the visitor rather than to one
// conversation.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	c.session = models.ChatSession{}
	c.intake = models.IntakeDraft{}
	c.appointment = models.AppointmentDraft{}
	c.rxOrder = models.RxOrderDraft{}
	c.upload = models.UploadDraft{}
	c.busy = false
	c.timeline.Clear()
	if c.open {
		welcome := newMessage(models.SenderAI, welcomeText)
		welcome.QuickReplies = replies.GlobalActions()
		c.appendLocked(welcome)
	}
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.syncPollingLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	if err := c.ident.ClearSession(ctx); err != nil {
		log.Printf("[Store] clearing session: %v", err)
	}
}

// SendUserMessage appends the user's text optimistically and routes it to
// the assistant, or straight into the pharmacist thread while escalated.
// Failures never propagate to the caller; they land on the timeline as
// system notices.
func (c *Controller) SendUserMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	c.appendLocked(newMessage(models.SenderUser, text))
	c.busy = true
	escalated := c.session.Escalated
	sessionID := c.session.SessionID
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	if escalated {
		c.sendEscalated(ctx, sessionID, text)
		return
	}
	c.sendToAssistant(ctx, text, sessionID)
}

func (c *Controller) sendToAssistant(ctx context.Context, text, sessionID string) {
	resp, err := c.api.SendChatMessage(ctx, text, sessionID)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		log.Printf("[Assistant] chat call failed: %v", err)
		platformErrorsTotal.WithLabelValues("send_chat").Inc()
		c.appendLocked(c.failureMessage(err))
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return
	}

	var toPersist *models.ChatSession
	changed := false
	if resp.ChatID != "" && resp.ChatID != c.session.ChatID {
		c.session.ChatID = resp.ChatID
		changed = true
	}
	if resp.SessionID != "" && resp.SessionID != c.session.SessionID {
		c.session.SessionID = resp.SessionID
		changed = true
	}

	aiMsg := newMessage(models.SenderAI, resp.Answer)
	aiMsg.Intent = resp.Intent
	aiMsg.Actions = resp.Actions
	aiMsg.Cards = resp.Cards
	aiMsg.QuickReplies = resp.QuickReplies
	aiMsg.Suggestions = resp.Suggestions
	normalizeReplies(&aiMsg)
	aiMsg.Freshness = deriveFreshness(resp)
	c.appendLocked(aiMsg)

	if resp.SystemMessage != "" {
		c.appendLocked(newMessage(models.SenderSystem, resp.SystemMessage))
		wasEscalated := c.session.Escalated
		state := ApplyMarker(stateOf(wasEscalated), resp.SystemMessage)
		c.session.Escalated = state == StateEscalated
		if !wasEscalated && c.session.Escalated {
			escalationsTotal.Inc()
			changed = true
		}
	}
	if changed {
		s := c.session
		toPersist = &s
	}
	c.syncPollingLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	if toPersist != nil {
		if err := c.ident.SaveSession(ctx, *toPersist); err != nil {
			log.Printf("[Store] persisting session: %v", err)
		}
	}
}

func (c *Controller) sendEscalated(ctx context.Context, sessionID, text string) {
	err := c.api.PostEscalatedMessage(ctx, sessionID, text)

	c.mu.Lock()
	c.busy = false
	switch {
	case err == nil:
		// The pharmacist thread echoes it back on the next poll.
	case platform.IsSessionGone(err):
		log.Printf("[Assistant] escalated session %s is gone: %v", sessionID, err)
		c.session.Escalated = false
		c.appendLocked(newMessage(models.SenderSystem, expiredNoticeText))
		c.syncPollingLocked()
	default:
		log.Printf("[Assistant] escalated send failed: %v", err)
		platformErrorsTotal.WithLabelValues("post_escalated").Inc()
		c.appendLocked(c.failureMessage(err))
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// normalizeReplies canonicalizes a message's reply sets as they come off
// the wire: duplicates collapse, quick replies that repeat a suggestion are
// dropped, and members of the fixed global-action set move out of the
// inline list (the snapshot carries that set separately).
func normalizeReplies(m *models.ChatMessage) {
	m.Suggestions = replies.Dedup(m.Suggestions)
	qr := replies.DropDuplicates(replies.Dedup(m.QuickReplies), m.Suggestions)
	qr, _ = replies.Partition(qr, replies.GlobalActions())
	m.QuickReplies = qr
}

// deriveFreshness attaches catalog timestamps only to turns that look like
// search results: a search-flavored intent or product cards present.
func deriveFreshness(resp *platform.ChatResponse) *models.Freshness {
	if resp.DataLastUpdatedAt == nil && resp.IndexedAt == nil {
		return nil
	}
	if !searchLikeIntent(resp.Intent) && len(resp.Cards) == 0 {
		return nil
	}
	return &models.Freshness{
		DataLastUpdatedAt: resp.DataLastUpdatedAt,
		IndexedAt:         resp.IndexedAt,
	}
}

func searchLikeIntent(intent string) bool {
	return strings.Contains(strings.ToLower(intent), "search")
}

// appendLocked adds a message to the timeline. Callers hold c.mu.
func (c *Controller) appendLocked(msg models.ChatMessage) {
	c.timeline.Append(msg)
	messagesTotal.WithLabelValues(string(msg.SenderType)).Inc()
}

// failureMessage renders a failed platform call as a system notice,
// preferring the server's human-readable detail.
func (c *Controller) failureMessage(err error) models.ChatMessage {
	text := platform.Detail(err)
	if text == "" {
		text = genericFailureText
	}
	return newMessage(models.SenderSystem, text)
}

func (c *Controller) snapshotLocked() Snapshot {
	cart := make([]models.CartItem, len(c.cart))
	copy(cart, c.cart)
	tracking := make([]string, len(c.tracking))
	copy(tracking, c.tracking)
	return Snapshot{
		Session:       c.session,
		State:         stateOf(c.session.Escalated),
		Open:          c.open,
		Busy:          c.busy,
		Messages:      c.timeline.Messages(),
		Intake:        c.intake,
		Appointment:   c.appointment,
		RxOrder:       c.rxOrder,
		Upload:        c.upload,
		Cart:          cart,
		TrackingCodes: tracking,
		OpenForms:     c.timeline.OpenForms(),
		GlobalActions: replies.GlobalActions(),
	}
}

// publish fans a snapshot out to all listeners. Callers must not hold
// c.mu.
func (c *Controller) publish(snap Snapshot) {
	c.mu.Lock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()
	for _, l := range ls {
		l.StateChanged(snap)
	}
}

// navigate asks every listener to move the embedding page.
func (c *Controller) navigate(target string) {
	c.mu.Lock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()
	for _, l := range ls {
		l.Navigate(target)
	}
}

func newMessage(sender models.SenderType, text string) models.ChatMessage {
	return models.ChatMessage{
		ID:         uuid.NewString(),
		SenderType: sender,
		Text:       text,
		Timestamp:  time.Now(),
	}
}
