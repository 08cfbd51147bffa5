package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openclaw/qrgen/qr"
	"github.com/openclaw/qrgen/store"
)

// History records generations and downloads. A nil History disables it.
type History interface {
	SaveGeneration(g *store.Generation) error
	SaveDownload(d *store.Download) error
	GetGenerations(limit, offset int) ([]store.Generation, error)
	GetDownloads(limit, offset int) ([]store.Download, error)
}

// Server holds the dependencies for all HTTP handlers.
type Server struct {
	Sessions   *qr.Sessions
	Builder    *qr.Builder
	Downloader *qr.Downloader
	History    History
	Log        *slog.Logger
	Version    string
	StartTime  time.Time
}

// NewRouter returns a fully configured chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(requestLogger(s.Log))

	// Widget UI
	r.Get("/", s.handlePage)
	r.Get("/status", s.handleStatus)

	// Widget sessions
	r.Post("/sessions", s.handleMount)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.withSession(s.handleGetSession))
		r.Patch("/", s.withSession(s.handleUpdateSession))
		r.Delete("/", s.handleUnmount)
		r.Post("/generate", s.withSession(s.handleGenerate))
		r.Get("/preview", s.withSession(s.handlePreview))
		r.Get("/download", s.withSession(s.handleDownload))
	})

	// History
	r.Get("/history/generations", s.handleGetGenerations)
	r.Get("/history/downloads", s.handleGetDownloads)

	return r
}

// --- helpers ----------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// --- middleware --------------------------------------------------------------

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	}
}
