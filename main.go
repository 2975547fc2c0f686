package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/72rs3/pharmacy-assistant-sub000/assistant"
	"github.com/72rs3/pharmacy-assistant-sub000/controllers"
	"github.com/72rs3/pharmacy-assistant-sub000/middleware"
	"github.com/72rs3/pharmacy-assistant-sub000/platform"
	"github.com/72rs3/pharmacy-assistant-sub000/routes"
	"github.com/72rs3/pharmacy-assistant-sub000/store"
)

func envSeconds(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return def
}

// openStore picks the session store backend from STORE_DRIVER. The default
// in-memory store is enough for a single-instance widget; the others keep
// the anonymous identity across restarts and instances.
func openStore() (store.Store, error) {
	switch strings.ToLower(os.Getenv("STORE_DRIVER")) {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		path := os.Getenv("STORE_PATH")
		if path == "" {
			path = "assistant.db"
		}
		return store.OpenGorm(path)
	case "mysql":
		return store.OpenGormMySQL()
	case "redis":
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		db := 0
		if s := os.Getenv("REDIS_DB"); s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				db = v
			}
		}
		return store.NewRedis(addr, os.Getenv("REDIS_PASSWORD"), db)
	default:
		log.Fatalf("Unknown STORE_DRIVER %q (want memory, sqlite or redis)", os.Getenv("STORE_DRIVER"))
		return nil, nil
	}
}

func main() {
	// Load .env if present (do not overwrite already-set environment variables).
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	// Validate required environment variables
	requiredEnvVars := []string{"PLATFORM_BASE_URL"}
	for _, envVar := range requiredEnvVars {
		if os.Getenv(envVar) == "" {
			log.Fatalf("Required environment variable %s is not set", envVar)
		}
	}

	kv, err := openStore()
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}

	api := platform.NewClient(os.Getenv("PLATFORM_BASE_URL"), envSeconds("PLATFORM_TIMEOUT_SECONDS", 30*time.Second))
	ctrl := assistant.NewController(api, store.NewIdentity(kv))
	api.Identity = ctrl.ChatID
	ctrl.PollInterval = envSeconds("POLL_INTERVAL_SECONDS", 5*time.Second)
	if tenant := os.Getenv("TENANT_ID"); tenant != "" {
		ctrl.SetTenantID(tenant)
	}

	widget := controllers.NewWidgetController(ctrl)
	stream := controllers.NewStreamController(ctrl)
	router := routes.InitRouter(widget, stream)

	// Wrap router with global middleware: logging -> request id -> recovery.
	// CORS and metrics run inside the router so they see the matched route.
	handler := middleware.RequestLogMiddleware(
		middleware.RequestIDMiddleware(
			middleware.RecoveryMiddleware(router),
		),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop the escalation poll loop and release the store.
	ctrl.Close()
	if err := kv.Close(); err != nil {
		log.Printf("[warn] closing store: %v", err)
	}

	log.Println("Server exited")
}
