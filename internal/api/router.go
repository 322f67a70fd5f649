// Package api exposes the plant assistant over HTTP and MCP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/sprout/internal/assistant"
)

const (
	maxRequestBodySize    = 1 << 20  // 1MB
	defaultMaxUploadBytes = 10 << 20 // 10MB
)

// Service is the plant assistant used by the HTTP and MCP handlers.
type Service interface {
	Diagnose(ctx context.Context, req assistant.DiagnoseRequest) (assistant.DiagnoseResult, error)
	Chat(ctx context.Context, req assistant.ChatRequest) (assistant.ChatResult, error)
}

// Models lists the configured candidates per task, primary first.
type Models struct {
	Diagnosis []string
	Chat      []string
}

type Deps struct {
	Service        Service
	Models         Models
	Token          string // optional; when set, API routes require it as a bearer token
	MaxUploadBytes int64
	Version        string
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", handleIndex(deps))
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Get("/models", handleModels(deps.Models))
		r.Post("/plant/diagnose", handleDiagnose(deps.Service, deps.MaxUploadBytes))
		r.Post("/chat", handleChat(deps.Service))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, errTypeInvalidRequest, "no route for %s %s", r.Method, r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed, errTypeInvalidRequest, "method %s not allowed on %s", r.Method, r.URL.Path)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleIndex(deps Deps) http.HandlerFunc {
	body := map[string]any{
		"name":    "sprout",
		"version": deps.Version,
		"endpoints": map[string]string{
			"GET /health":          "liveness check",
			"GET /models":          "configured models per task",
			"POST /plant/diagnose": "multipart: image, additional_info, label",
			"POST /chat":           "json: message, conversation_history",
		},
		"allowed_extensions": assistant.AllowedExtensions,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

type taskModels struct {
	Primary   string   `json:"primary"`
	Fallbacks []string `json:"fallbacks"`
}

func newTaskModels(candidates []string) taskModels {
	tm := taskModels{Fallbacks: []string{}}
	if len(candidates) > 0 {
		tm.Primary = candidates[0]
		tm.Fallbacks = append(tm.Fallbacks, candidates[1:]...)
	}
	return tm
}

func handleModels(m Models) http.HandlerFunc {
	body := map[string]taskModels{
		"diagnosis": newTaskModels(m.Diagnosis),
		"chat":      newTaskModels(m.Chat),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}
