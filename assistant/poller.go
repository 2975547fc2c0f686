package assistant

import (
	"context"
	"log"
	"time"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
	"github.com/72rs3/pharmacy-assistant-sub000/platform"
)

// syncPollingLocked starts or stops the escalation poll so that it runs
// exactly while the widget is open and a pharmacist holds the session. A
// session rotation tears the old loop down and starts a fresh one.
// Callers hold c.mu.
func (c *Controller) syncPollingLocked() {
	shouldRun := c.open && c.session.Escalated && c.session.SessionID != ""
	if c.pollCancel != nil && (!shouldRun || c.pollSession != c.session.SessionID) {
		c.pollCancel()
		c.pollCancel = nil
		c.pollSession = ""
	}
	if shouldRun && c.pollCancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.pollCancel = cancel
		c.pollSession = c.session.SessionID
		go c.pollLoop(ctx, c.session.SessionID, c.PollInterval)
	}
}

// pollLoop refreshes an escalated conversation until its context is
// cancelled. Every tick fetches the full history; applyHistory drops the
// result when the loop was cancelled mid-flight.
func (c *Controller) pollLoop(ctx context.Context, sessionID string, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	log.Printf("[Poll] started for session %s", sessionID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Poll] stopped for session %s", sessionID)
			return
		case <-ticker.C:
			pollCyclesTotal.Inc()
			c.loadHistory(ctx, sessionID)
		}
	}
}

// loadHistory fetches the session history once and swaps it in behind the
// welcome message. Shared by Open and the poll loop.
func (c *Controller) loadHistory(ctx context.Context, sessionID string) {
	entries, err := c.api.FetchSessionMessages(ctx, sessionID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[Poll] history fetch for %s failed: %v", sessionID, err)
			platformErrorsTotal.WithLabelValues("fetch_messages").Inc()
		}
		return
	}
	c.applyHistory(ctx, sessionID, entries)
}

// applyHistory replaces the timeline tail with the fetched entries and
// re-derives the escalation state from the markers they carry. The fetch
// is discarded when its context was cancelled or the widget moved on
// (closed, session rotated) while it was in flight.
func (c *Controller) applyHistory(ctx context.Context, sessionID string, entries []platform.SessionEntry) {
	msgs := make([]models.ChatMessage, 0, len(entries))
	for _, e := range entries {
		m := e.Message()
		normalizeReplies(&m)
		msgs = append(msgs, m)
	}

	c.mu.Lock()
	if ctx.Err() != nil || !c.open || c.session.SessionID != sessionID {
		c.mu.Unlock()
		return
	}
	keep := 0
	if c.timeline.Len() > 0 {
		keep = 1 // the local welcome message stays put
	}
	c.timeline.ReplaceTail(keep, msgs)
	wasEscalated := c.session.Escalated
	state := DeriveState(stateOf(wasEscalated), msgs)
	c.session.Escalated = state == StateEscalated
	if !wasEscalated && c.session.Escalated {
		escalationsTotal.Inc()
	}
	c.syncPollingLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}
