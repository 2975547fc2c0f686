package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/72rs3/pharmacy-assistant-sub000/assistant"
	"github.com/72rs3/pharmacy-assistant-sub000/controllers"
	"github.com/72rs3/pharmacy-assistant-sub000/models"
	"github.com/72rs3/pharmacy-assistant-sub000/platform"
	"github.com/72rs3/pharmacy-assistant-sub000/store"
)

// noopService keeps the routed handlers callable without a live platform.
type noopService struct{}

func (noopService) SendChatMessage(ctx context.Context, text, sessionID string) (*platform.ChatResponse, error) {
	return &platform.ChatResponse{Answer: "ok"}, nil
}
func (noopService) PostEscalatedMessage(ctx context.Context, sessionID, text string) error {
	return nil
}
func (noopService) FetchSessionMessages(ctx context.Context, sessionID string) ([]platform.SessionEntry, error) {
	return nil, nil
}
func (noopService) SubmitEscalationIntake(ctx context.Context, sessionID string, draft models.IntakeDraft) (string, error) {
	return "", nil
}
func (noopService) FetchAppointmentSlots(ctx context.Context, date string) ([]models.Slot, error) {
	return nil, nil
}
func (noopService) CreateAppointment(ctx context.Context, req platform.AppointmentRequest) (*platform.AppointmentResponse, error) {
	return &platform.AppointmentResponse{ID: "appt-1"}, nil
}
func (noopService) UploadPrescriptionDraft(ctx context.Context, files []models.PrescriptionFile) ([]string, error) {
	return nil, nil
}
func (noopService) CreateRxOrder(ctx context.Context, req platform.RxOrderRequest) (string, error) {
	return "order-1", nil
}
func (noopService) AddToCart(ctx context.Context, tenantID, medicineID string, qty int) (*platform.CartItemResponse, error) {
	return &platform.CartItemResponse{MedicineID: medicineID}, nil
}
func (noopService) ResolveCurrentTenantID(ctx context.Context) (string, error) {
	return "tenant-1", nil
}

func newTestRouter() http.Handler {
	ctrl := assistant.NewController(noopService{}, store.NewIdentity(store.NewMemory()))
	ctrl.PollInterval = time.Hour
	return InitRouter(controllers.NewWidgetController(ctrl), controllers.NewStreamController(ctrl))
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy status, got %v", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWidgetRoutesAreWired(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/widget/state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from state, got %d", rec.Code)
	}

	// Wrong method on a POST route.
	req = httptest.NewRequest(http.MethodGet, "/v1/widget/message", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPreflightHandled(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/v1/widget/message", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code >= http.StatusBadRequest {
		t.Fatalf("expected preflight to pass, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
}
