package assistant

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
	"github.com/72rs3/pharmacy-assistant-sub000/platform"
	"github.com/72rs3/pharmacy-assistant-sub000/utils"
)

const (
	intakePromptText      = "Before I hand you over to a pharmacist, tell me a bit about your concern."
	appointmentPromptText = "Pick a time that suits you and fill in your details."
	rxOrderPromptText     = "This medicine needs a prescription. Fill in the delivery details to order it."
	uploadPromptText      = "Please upload a photo of your prescription."
	uploadRequiredText    = "I need a prescription on file before placing this order. Please upload a photo of it first."
)

// OpenIntakeForm appends the pharmacist triage form, replacing any live
// one.
func (c *Controller) OpenIntakeForm() {
	c.mu.Lock()
	msg := newMessage(models.SenderAI, intakePromptText)
	msg.EmbeddedForm = models.FormIntake
	c.appendLocked(msg)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// OpenAppointmentForm loads the day's slots and appends the booking form.
// date defaults to today.
func (c *Controller) OpenAppointmentForm(ctx context.Context, date string) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	slots, err := c.api.FetchAppointmentSlots(ctx, date)
	if err != nil {
		log.Printf("[Assistant] slot fetch for %s failed: %v", date, err)
		platformErrorsTotal.WithLabelValues("fetch_slots").Inc()
		c.mu.Lock()
		c.appendLocked(c.failureMessage(err))
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return
	}

	c.mu.Lock()
	c.appointment.Date = date
	c.appointment.ScheduledTime = ""
	c.appointment.Slots = slots
	msg := newMessage(models.SenderAI, appointmentPromptText)
	msg.EmbeddedForm = models.FormAppointment
	c.appendLocked(msg)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// LoadSlots refreshes the bookable slots when the user changes the date
// inside an already open booking form. Changing the date drops the chosen
// time.
func (c *Controller) LoadSlots(ctx context.Context, date string) error {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return &utils.ValidationError{Field: "Date", Message: "must be a date in YYYY-MM-DD format"}
	}
	slots, err := c.api.FetchAppointmentSlots(ctx, date)
	if err != nil {
		log.Printf("[Assistant] slot fetch for %s failed: %v", date, err)
		platformErrorsTotal.WithLabelValues("fetch_slots").Inc()
		c.mu.Lock()
		c.appendLocked(c.failureMessage(err))
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return nil
	}

	c.mu.Lock()
	c.appointment.Date = date
	c.appointment.ScheduledTime = ""
	c.appointment.Slots = slots
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

// OpenRxOrderForm seeds the prescription order draft and appends the order
// form.
func (c *Controller) OpenRxOrderForm(medicineID string) {
	c.mu.Lock()
	if medicineID != "" {
		c.rxOrder.MedicineID = medicineID
	}
	msg := newMessage(models.SenderAI, rxOrderPromptText)
	msg.EmbeddedForm = models.FormRxOrder
	c.appendLocked(msg)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// OpenUploadForm reveals the prescription upload affordance.
func (c *Controller) OpenUploadForm(medicineID string) {
	c.mu.Lock()
	if medicineID != "" {
		c.upload.MedicineID = medicineID
	}
	msg := newMessage(models.SenderAI, uploadPromptText)
	msg.EmbeddedForm = models.FormUpload
	c.appendLocked(msg)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// CancelForm closes a sub-form and discards its draft.
func (c *Controller) CancelForm(kind models.FormKind) {
	c.mu.Lock()
	c.timeline.RemoveForm(kind)
	switch kind {
	case models.FormIntake:
		c.intake = models.IntakeDraft{}
	case models.FormAppointment:
		c.appointment = models.AppointmentDraft{}
	case models.FormRxOrder:
		c.rxOrder = models.RxOrderDraft{}
	case models.FormUpload:
		c.upload = models.UploadDraft{}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// SubmitIntake validates the triage draft and escalates the session to a
// pharmacist. Validation failures come back to the caller for inline
// rendering; transport failures land on the timeline and return nil.
func (c *Controller) SubmitIntake(ctx context.Context, draft models.IntakeDraft) error {
	if err := draft.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.intake = draft
	sessionID := c.session.SessionID
	c.mu.Unlock()

	sysText, err := c.api.SubmitEscalationIntake(ctx, sessionID, draft)

	c.mu.Lock()
	if err != nil {
		log.Printf("[Assistant] escalation intake failed: %v", err)
		platformErrorsTotal.WithLabelValues("submit_intake").Inc()
		c.appendLocked(c.failureMessage(err))
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return nil
	}
	if sysText == "" {
		sysText = MarkerEscalated
	}
	c.timeline.RemoveForm(models.FormIntake)
	c.appendLocked(newMessage(models.SenderSystem, sysText))
	if !c.session.Escalated {
		escalationsTotal.Inc()
	}
	c.session.Escalated = true
	c.intake = models.IntakeDraft{}
	c.syncPollingLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

// SubmitAppointment books the chosen slot. A slot someone else took first
// clears the chosen time, refreshes the day's slots once and returns
// ErrSlotTaken so the form can prompt a reselect. Other failures land on
// the timeline.
func (c *Controller) SubmitAppointment(ctx context.Context, draft models.AppointmentDraft) error {
	if err := draft.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	draft.Slots = c.appointment.Slots
	c.appointment = draft
	c.mu.Unlock()

	resp, err := c.api.CreateAppointment(ctx, platform.AppointmentRequest{
		Name:          draft.Name,
		Phone:         draft.Phone,
		Date:          draft.Date,
		ScheduledTime: draft.ScheduledTime,
		Reason:        draft.Reason,
	})

	if err != nil && platform.IsConflict(err) {
		slots, ferr := c.api.FetchAppointmentSlots(ctx, draft.Date)
		c.mu.Lock()
		c.appointment.ScheduledTime = ""
		if ferr != nil {
			log.Printf("[Assistant] slot refresh after conflict failed: %v", ferr)
		} else {
			c.appointment.Slots = slots
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return ErrSlotTaken
	}

	c.mu.Lock()
	if err != nil {
		log.Printf("[Assistant] appointment booking failed: %v", err)
		platformErrorsTotal.WithLabelValues("create_appointment").Inc()
		c.appendLocked(c.failureMessage(err))
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return nil
	}

	text := fmt.Sprintf("Your appointment is booked for %s at %s.", draft.Date, draft.ScheduledTime)
	if resp.TrackingCode != "" {
		text += fmt.Sprintf(" Your tracking code is %s.", resp.TrackingCode)
		c.tracking = append([]string{resp.TrackingCode}, c.tracking...)
		if len(c.tracking) > maxLocalTracking {
			c.tracking = c.tracking[:maxLocalTracking]
		}
	}
	c.timeline.RemoveForm(models.FormAppointment)
	c.appendLocked(newMessage(models.SenderAI, text))
	c.appointment = models.AppointmentDraft{}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	if resp.TrackingCode != "" {
		if err := c.ident.PushTrackingCode(ctx, resp.TrackingCode); err != nil {
			log.Printf("[Store] persisting tracking code: %v", err)
		}
	}
	return nil
}

// SubmitRxOrder places a prescription-backed order. Without at least one
// stored draft prescription token it never calls the order endpoint; it
// re-prompts for an upload instead.
func (c *Controller) SubmitRxOrder(ctx context.Context, draft models.RxOrderDraft) error {
	tokens, err := c.ident.DraftTokens(ctx)
	if err != nil {
		log.Printf("[Store] reading draft tokens: %v", err)
	}
	if len(tokens) == 0 {
		c.mu.Lock()
		if draft.MedicineID != "" {
			c.upload.MedicineID = draft.MedicineID
		}
		msg := newMessage(models.SenderAI, uploadRequiredText)
		msg.EmbeddedForm = models.FormUpload
		c.appendLocked(msg)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return nil
	}
	if err := draft.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.rxOrder = draft
	c.mu.Unlock()

	orderID, err := c.api.CreateRxOrder(ctx, platform.RxOrderRequest{
		MedicineID:              draft.MedicineID,
		Name:                    draft.Name,
		Phone:                   draft.Phone,
		Address:                 draft.Address,
		Qty:                     draft.Qty,
		Notes:                   draft.Notes,
		DraftPrescriptionTokens: tokens,
	})

	c.mu.Lock()
	if err != nil {
		log.Printf("[Assistant] rx order failed: %v", err)
		platformErrorsTotal.WithLabelValues("create_rx_order").Inc()
		c.appendLocked(c.failureMessage(err))
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return nil
	}
	text := "Your prescription order has been placed. The pharmacy will confirm it shortly."
	if orderID != "" {
		text = fmt.Sprintf("Your prescription order %s has been placed. The pharmacy will confirm it shortly.", orderID)
	}
	c.timeline.RemoveForm(models.FormRxOrder)
	c.appendLocked(newMessage(models.SenderAI, text))
	c.rxOrder = models.RxOrderDraft{}
	c.upload = models.UploadDraft{}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	if err := c.ident.ClearDraftTokens(ctx); err != nil {
		log.Printf("[Store] clearing draft tokens: %v", err)
	}
	return nil
}

// SubmitUpload sends the chosen prescription files and stores the returned
// draft tokens for the order step.
func (c *Controller) SubmitUpload(ctx context.Context, files []models.PrescriptionFile) error {
	if len(files) == 0 {
		return &utils.ValidationError{Field: "Files", Message: "select at least one file"}
	}

	tokens, err := c.api.UploadPrescriptionDraft(ctx, files)
	if err != nil {
		log.Printf("[Assistant] prescription upload failed: %v", err)
		platformErrorsTotal.WithLabelValues("upload_prescription").Inc()
		c.mu.Lock()
		c.appendLocked(c.failureMessage(err))
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return nil
	}
	if err := c.ident.AppendDraftTokens(ctx, tokens); err != nil {
		log.Printf("[Store] saving draft tokens: %v", err)
	}

	c.mu.Lock()
	c.timeline.RemoveForm(models.FormUpload)
	var msg models.ChatMessage
	if target := c.upload.MedicineID; target != "" {
		msg = newMessage(models.SenderAI, "Prescription received. Want me to place that order now?")
		msg.Actions = []models.MessageAction{{
			Type:    ActionPlaceRxOrder,
			Label:   "Place the order",
			Payload: map[string]interface{}{"medicine_id": target},
		}}
	} else {
		msg = newMessage(models.SenderAI, "Prescription received. You can order prescription medicines now.")
	}
	c.appendLocked(msg)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}
