package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/72rs3/pharmacy-assistant-sub000/assistant"
	"github.com/72rs3/pharmacy-assistant-sub000/models"
	"github.com/72rs3/pharmacy-assistant-sub000/utils"
)

// WidgetController exposes the conversation controller to the storefront
// widget. Every mutating endpoint answers with the full state snapshot, so
// clients that skip the websocket stream can still re-render from the
// response alone.
type WidgetController struct {
	Ctrl *assistant.Controller
}

func NewWidgetController(ctrl *assistant.Controller) *WidgetController {
	return &WidgetController{Ctrl: ctrl}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type suggestionRequest struct {
	Text             string `json:"text"`
	TriggerMessageID string `json:"trigger_message_id,omitempty"`
}

type actionRequest struct {
	Type    string                 `json:"type"`
	Label   string                 `json:"label,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

type cancelFormRequest struct {
	Kind string `json:"kind"`
}

// GetState returns the current widget snapshot.
func (wc *WidgetController) GetState(w http.ResponseWriter, r *http.Request) {
	wc.writeState(w)
}

// Open marks the widget visible and restores any persisted session.
func (wc *WidgetController) Open(w http.ResponseWriter, r *http.Request) {
	wc.Ctrl.Open(r.Context())
	wc.writeState(w)
}

// Close hides the widget and stops its background work.
func (wc *WidgetController) Close(w http.ResponseWriter, r *http.Request) {
	wc.Ctrl.Close()
	wc.writeState(w)
}

// SendMessage relays a typed user message.
func (wc *WidgetController) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "Message text is required")
		return
	}
	wc.Ctrl.SendUserMessage(r.Context(), req.Text)
	wc.writeState(w)
}

// SelectSuggestion routes a clicked quick reply or suggestion chip. The
// optional trigger message id lets the router see which turn offered it.
func (wc *WidgetController) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "Suggestion text is required")
		return
	}
	var trigger *models.ChatMessage
	if req.TriggerMessageID != "" {
		if m, ok := wc.Ctrl.Message(req.TriggerMessageID); ok {
			trigger = &m
		}
	}
	wc.Ctrl.SelectSuggestion(r.Context(), req.Text, trigger)
	wc.writeState(w)
}

// InvokeAction dispatches a structured message action.
func (wc *WidgetController) InvokeAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		badRequest(w, "Action type is required")
		return
	}
	wc.Ctrl.InvokeAction(r.Context(), models.MessageAction{
		Type:    req.Type,
		Label:   req.Label,
		Payload: req.Payload,
	})
	wc.writeState(w)
}

// SubmitIntake validates and submits the pharmacist triage form.
func (wc *WidgetController) SubmitIntake(w http.ResponseWriter, r *http.Request) {
	var draft models.IntakeDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	wc.respondSubmit(w, wc.Ctrl.SubmitIntake(r.Context(), draft))
}

// SubmitAppointment books the chosen slot.
func (wc *WidgetController) SubmitAppointment(w http.ResponseWriter, r *http.Request) {
	var draft models.AppointmentDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	wc.respondSubmit(w, wc.Ctrl.SubmitAppointment(r.Context(), draft))
}

// LoadSlots refreshes the bookable slots for the date picked in the form.
func (wc *WidgetController) LoadSlots(w http.ResponseWriter, r *http.Request) {
	wc.respondSubmit(w, wc.Ctrl.LoadSlots(r.Context(), r.URL.Query().Get("date")))
}

// SubmitRxOrder places a prescription-backed order.
func (wc *WidgetController) SubmitRxOrder(w http.ResponseWriter, r *http.Request) {
	var draft models.RxOrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	wc.respondSubmit(w, wc.Ctrl.SubmitRxOrder(r.Context(), draft))
}

// UploadPrescription accepts multipart prescription photos under the
// "files" field.
func (wc *WidgetController) UploadPrescription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		badRequest(w, "Invalid multipart form")
		return
	}
	var files []models.PrescriptionFile
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			badRequest(w, "Unable to read uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			badRequest(w, "Unable to read uploaded file")
			return
		}
		files = append(files, models.PrescriptionFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	wc.respondSubmit(w, wc.Ctrl.SubmitUpload(r.Context(), files))
}

// CancelForm closes an embedded sub-form and discards its draft.
func (wc *WidgetController) CancelForm(w http.ResponseWriter, r *http.Request) {
	var req cancelFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	kind := models.FormKind(req.Kind)
	switch kind {
	case models.FormIntake, models.FormAppointment, models.FormRxOrder, models.FormUpload:
	default:
		badRequest(w, "Unknown form kind")
		return
	}
	wc.Ctrl.CancelForm(kind)
	wc.writeState(w)
}

// ContinueWithAI hands the conversation back to the assistant after a
// pharmacist consultation.
func (wc *WidgetController) ContinueWithAI(w http.ResponseWriter, r *http.Request) {
	wc.Ctrl.ContinueWithAI()
	wc.writeState(w)
}

// Reset abandons the conversation and forgets the persisted identity.
func (wc *WidgetController) Reset(w http.ResponseWriter, r *http.Request) {
	wc.Ctrl.Reset(r.Context())
	wc.writeState(w)
}

func (wc *WidgetController) writeState(w http.ResponseWriter) {
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "ok",
		Data:    wc.Ctrl.State(),
	})
}

// respondSubmit maps a form submit result. Validation problems become 400s
// naming the offending field; a lost slot race becomes a 409 carrying the
// refreshed snapshot; anything else was already absorbed into the timeline
// by the controller, so the snapshot is the answer.
func (wc *WidgetController) respondSubmit(w http.ResponseWriter, err error) {
	var verr *utils.ValidationError
	switch {
	case err == nil:
		wc.writeState(w)
	case errors.As(err, &verr):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: verr.Error(),
			Data:    map[string]string{"field": verr.Field},
		})
	case errors.Is(err, assistant.ErrSlotTaken):
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{
			Success: false,
			Message: "That slot was just booked by someone else. Please pick another time.",
			Data:    wc.Ctrl.State(),
		})
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Something went wrong. Please try again.",
		})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
		Success: false,
		Message: msg,
	})
}
