package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/72rs3/pharmacy-assistant-sub000/controllers"
	"github.com/72rs3/pharmacy-assistant-sub000/middleware"
)

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func InitRouter(widget *controllers.WidgetController, stream *controllers.StreamController) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint for container health checks (root level)
	r.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   "pharmacy-widget-api",
		})
	})).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// CORS origins: the tenant storefronts that embed the widget, from
	// ALLOWED_ORIGINS (comma-separated), plus local dev defaults.
	originsEnv := os.Getenv("ALLOWED_ORIGINS")
	origins := []string{
		"http://localhost:3000", "http://localhost:5173",
		"http://127.0.0.1:3000", "http://127.0.0.1:5173",
	}
	if originsEnv != "" {
		for _, p := range strings.Split(originsEnv, ",") {
			if o := strings.TrimSpace(p); o != "" {
				origins = append(origins, o)
			}
		}
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With", "X-Request-ID"}),
		)(next)
	})
	// Metrics run as router middleware so mux has matched the route and
	// the path label can use the route template.
	r.Use(middleware.MetricsMiddleware)

	api := r.PathPrefix("/v1").Subrouter()

	// Catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	// Message sends hit the platform AI on every call, uploads move photos.
	sendLimiter := middleware.NewIPRateLimiter(30, time.Minute)
	uploadLimiter := middleware.NewIPRateLimiter(10, time.Minute)
	jsonBody := middleware.MaxBody(middleware.JSONBodyLimit())
	uploadBody := middleware.MaxBody(middleware.UploadBodyLimit())

	api.Handle("/widget/state", http.HandlerFunc(widget.GetState)).Methods(http.MethodGet)
	api.Handle("/widget/open", http.HandlerFunc(widget.Open)).Methods(http.MethodPost)
	api.Handle("/widget/close", http.HandlerFunc(widget.Close)).Methods(http.MethodPost)

	api.Handle("/widget/message", sendLimiter.Middleware(jsonBody(http.HandlerFunc(widget.SendMessage)))).Methods(http.MethodPost)
	api.Handle("/widget/suggestion", sendLimiter.Middleware(jsonBody(http.HandlerFunc(widget.SelectSuggestion)))).Methods(http.MethodPost)
	api.Handle("/widget/action", sendLimiter.Middleware(jsonBody(http.HandlerFunc(widget.InvokeAction)))).Methods(http.MethodPost)

	api.Handle("/widget/intake", jsonBody(http.HandlerFunc(widget.SubmitIntake))).Methods(http.MethodPost)
	api.Handle("/widget/appointment", jsonBody(http.HandlerFunc(widget.SubmitAppointment))).Methods(http.MethodPost)
	api.Handle("/widget/appointment/slots", http.HandlerFunc(widget.LoadSlots)).Methods(http.MethodGet)
	api.Handle("/widget/rx-order", jsonBody(http.HandlerFunc(widget.SubmitRxOrder))).Methods(http.MethodPost)
	api.Handle("/widget/upload", uploadLimiter.Middleware(uploadBody(http.HandlerFunc(widget.UploadPrescription)))).Methods(http.MethodPost)
	api.Handle("/widget/cancel", jsonBody(http.HandlerFunc(widget.CancelForm))).Methods(http.MethodPost)

	api.Handle("/widget/continue", http.HandlerFunc(widget.ContinueWithAI)).Methods(http.MethodPost)
	api.Handle("/widget/reset", http.HandlerFunc(widget.Reset)).Methods(http.MethodPost)

	api.Handle("/widget/stream", http.HandlerFunc(stream.HandleConnection)).Methods(http.MethodGet)

	return r
}
