package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/72rs3/pharmacy-assistant-sub000/assistant"
	"github.com/72rs3/pharmacy-assistant-sub000/models"
	"github.com/72rs3/pharmacy-assistant-sub000/platform"
	"github.com/72rs3/pharmacy-assistant-sub000/store"
)

// stubPlatform satisfies assistant.Service. Unset hooks answer with benign
// defaults so each test only wires the calls it cares about.
type stubPlatform struct {
	sendChat     func(ctx context.Context, text, sessionID string) (*platform.ChatResponse, error)
	fetchSlots   func(ctx context.Context, date string) ([]models.Slot, error)
	createAppt   func(ctx context.Context, req platform.AppointmentRequest) (*platform.AppointmentResponse, error)
	uploadDraft  func(ctx context.Context, files []models.PrescriptionFile) ([]string, error)
	createOrder  func(ctx context.Context, req platform.RxOrderRequest) (string, error)
	submitIntake func(ctx context.Context, sessionID string, draft models.IntakeDraft) (string, error)
}

func (s *stubPlatform) SendChatMessage(ctx context.Context, text, sessionID string) (*platform.ChatResponse, error) {
	if s.sendChat != nil {
		return s.sendChat(ctx, text, sessionID)
	}
	return &platform.ChatResponse{Answer: "ok", SessionID: "sess-1", ChatID: "chat-1"}, nil
}

func (s *stubPlatform) PostEscalatedMessage(ctx context.Context, sessionID, text string) error {
	return nil
}

func (s *stubPlatform) FetchSessionMessages(ctx context.Context, sessionID string) ([]platform.SessionEntry, error) {
	return nil, nil
}

func (s *stubPlatform) SubmitEscalationIntake(ctx context.Context, sessionID string, draft models.IntakeDraft) (string, error) {
	if s.submitIntake != nil {
		return s.submitIntake(ctx, sessionID, draft)
	}
	return "", nil
}

func (s *stubPlatform) FetchAppointmentSlots(ctx context.Context, date string) ([]models.Slot, error) {
	if s.fetchSlots != nil {
		return s.fetchSlots(ctx, date)
	}
	return []models.Slot{{Start: "09:00", End: "09:30"}}, nil
}

func (s *stubPlatform) CreateAppointment(ctx context.Context, req platform.AppointmentRequest) (*platform.AppointmentResponse, error) {
	if s.createAppt != nil {
		return s.createAppt(ctx, req)
	}
	return &platform.AppointmentResponse{ID: "appt-1"}, nil
}

func (s *stubPlatform) UploadPrescriptionDraft(ctx context.Context, files []models.PrescriptionFile) ([]string, error) {
	if s.uploadDraft != nil {
		return s.uploadDraft(ctx, files)
	}
	return []string{"tok-1"}, nil
}

func (s *stubPlatform) CreateRxOrder(ctx context.Context, req platform.RxOrderRequest) (string, error) {
	if s.createOrder != nil {
		return s.createOrder(ctx, req)
	}
	return "order-1", nil
}

func (s *stubPlatform) AddToCart(ctx context.Context, tenantID, medicineID string, qty int) (*platform.CartItemResponse, error) {
	return &platform.CartItemResponse{MedicineID: medicineID, Name: "Medicine"}, nil
}

func (s *stubPlatform) ResolveCurrentTenantID(ctx context.Context) (string, error) {
	return "tenant-1", nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestWidget(api *stubPlatform) *WidgetController {
	ctrl := assistant.NewController(api, store.NewIdentity(store.NewMemory()))
	ctrl.PollInterval = time.Hour
	return NewWidgetController(ctrl)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return env
}

func decodeSnapshot(t *testing.T, env envelope) assistant.Snapshot {
	t.Helper()
	var snap assistant.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	return snap
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGetStateReturnsSnapshot(t *testing.T) {
	wc := newTestWidget(&stubPlatform{})

	rec := httptest.NewRecorder()
	wc.GetState(rec, httptest.NewRequest(http.MethodGet, "/v1/widget/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success envelope, got %q", env.Message)
	}
	snap := decodeSnapshot(t, env)
	if snap.State != assistant.StateAIHandled {
		t.Fatalf("expected AI_HANDLED state, got %s", snap.State)
	}
	if len(snap.GlobalActions) == 0 {
		t.Fatalf("expected global actions in snapshot")
	}
}

func TestSendMessageAppendsTurns(t *testing.T) {
	api := &stubPlatform{
		sendChat: func(ctx context.Context, text, sessionID string) (*platform.ChatResponse, error) {
			return &platform.ChatResponse{Answer: "Try rest and fluids.", SessionID: "sess-1", ChatID: "chat-1"}, nil
		},
	}
	wc := newTestWidget(api)

	rec := httptest.NewRecorder()
	wc.Open(rec, postJSON("/v1/widget/open", ""))

	rec = httptest.NewRecorder()
	wc.SendMessage(rec, postJSON("/v1/widget/message", `{"text":"What helps with a cold?"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	snap := decodeSnapshot(t, decodeEnvelope(t, rec))
	if snap.Busy {
		t.Fatalf("expected busy cleared after the round trip")
	}
	if snap.Session.SessionID != "sess-1" {
		t.Fatalf("expected adopted session id, got %q", snap.Session.SessionID)
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Text != "Try rest and fluids." || last.SenderType != models.SenderAI {
		t.Fatalf("unexpected last message: %+v", last)
	}
}

func TestSendMessageRequiresText(t *testing.T) {
	wc := newTestWidget(&stubPlatform{})

	rec := httptest.NewRecorder()
	wc.SendMessage(rec, postJSON("/v1/widget/message", `{"text":"   "}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank text, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	wc.SendMessage(rec, postJSON("/v1/widget/message", `{`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestSubmitIntakeValidationNamesField(t *testing.T) {
	wc := newTestWidget(&stubPlatform{})

	rec := httptest.NewRecorder()
	wc.SubmitIntake(rec, postJSON("/v1/widget/intake", `{"name":"Ana","main_concern":"headache"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if data["field"] != "Phone" {
		t.Fatalf("expected Phone field error, got %q", data["field"])
	}
}

func TestSubmitAppointmentConflictMapsTo409(t *testing.T) {
	api := &stubPlatform{
		createAppt: func(ctx context.Context, req platform.AppointmentRequest) (*platform.AppointmentResponse, error) {
			return nil, &platform.APIError{StatusCode: http.StatusConflict, Code: "slot_conflict"}
		},
		fetchSlots: func(ctx context.Context, date string) ([]models.Slot, error) {
			return []models.Slot{{Start: "11:00", End: "11:30"}}, nil
		},
	}
	wc := newTestWidget(api)

	body := `{"name":"Ana","phone":"+6281234567890","date":"2026-09-01","scheduled_time":"10:00"}`
	rec := httptest.NewRecorder()
	wc.SubmitAppointment(rec, postJSON("/v1/widget/appointment", body))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure envelope")
	}
	snap := decodeSnapshot(t, env)
	if snap.Appointment.ScheduledTime != "" {
		t.Fatalf("expected cleared slot choice, got %q", snap.Appointment.ScheduledTime)
	}
	if len(snap.Appointment.Slots) != 1 || snap.Appointment.Slots[0].Start != "11:00" {
		t.Fatalf("expected refreshed slots in conflict payload, got %+v", snap.Appointment.Slots)
	}
}

func TestLoadSlotsValidatesDate(t *testing.T) {
	wc := newTestWidget(&stubPlatform{})

	rec := httptest.NewRecorder()
	wc.LoadSlots(rec, httptest.NewRequest(http.MethodGet, "/v1/widget/appointment/slots?date=tomorrow", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	wc.LoadSlots(rec, httptest.NewRequest(http.MethodGet, "/v1/widget/appointment/slots?date=2026-09-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	snap := decodeSnapshot(t, decodeEnvelope(t, rec))
	if snap.Appointment.Date != "2026-09-01" || len(snap.Appointment.Slots) != 1 {
		t.Fatalf("expected refreshed draft slots, got %+v", snap.Appointment)
	}
}

func TestUploadPrescriptionReadsMultipart(t *testing.T) {
	var got []models.PrescriptionFile
	api := &stubPlatform{
		uploadDraft: func(ctx context.Context, files []models.PrescriptionFile) ([]string, error) {
			got = files
			return []string{"tok-1"}, nil
		},
	}
	wc := newTestWidget(api)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "rx.jpg")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := fw.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/widget/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	wc.UploadPrescription(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(got) != 1 || got[0].Name != "rx.jpg" || string(got[0].Data) != "jpeg-bytes" {
		t.Fatalf("unexpected uploaded files: %+v", got)
	}
	snap := decodeSnapshot(t, decodeEnvelope(t, rec))
	last := snap.Messages[len(snap.Messages)-1]
	if !strings.Contains(last.Text, "Prescription received") {
		t.Fatalf("expected upload confirmation, got %q", last.Text)
	}
}

func TestUploadPrescriptionRequiresFiles(t *testing.T) {
	wc := newTestWidget(&stubPlatform{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/widget/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	wc.UploadPrescription(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without files, got %d", rec.Code)
	}
}

func TestCancelFormRejectsUnknownKind(t *testing.T) {
	wc := newTestWidget(&stubPlatform{})

	rec := httptest.NewRecorder()
	wc.CancelForm(rec, postJSON("/v1/widget/cancel", `{"kind":"mystery"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	wc.CancelForm(rec, postJSON("/v1/widget/cancel", `{"kind":"intake"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for known kind, got %d", rec.Code)
	}
}

func TestSelectSuggestionUsesTriggerMessage(t *testing.T) {
	var sent []string
	api := &stubPlatform{
		sendChat: func(ctx context.Context, text, sessionID string) (*platform.ChatResponse, error) {
			sent = append(sent, text)
			return &platform.ChatResponse{Answer: "Found it.", Intent: "medicine_search"}, nil
		},
	}
	wc := newTestWidget(api)

	rec := httptest.NewRecorder()
	wc.Open(rec, postJSON("/v1/widget/open", ""))

	rec = httptest.NewRecorder()
	wc.SendMessage(rec, postJSON("/v1/widget/message", `{"text":"Search Panadol"}`))
	snap := decodeSnapshot(t, decodeEnvelope(t, rec))
	triggerID := snap.Messages[len(snap.Messages)-1].ID

	rec = httptest.NewRecorder()
	body := `{"text":"Aspirin","trigger_message_id":"` + triggerID + `"}`
	wc.SelectSuggestion(rec, postJSON("/v1/widget/suggestion", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sent) != 2 || sent[1] != "Search Aspirin" {
		t.Fatalf("expected bare name rewritten to search, got %v", sent)
	}
}
