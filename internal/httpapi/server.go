package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RidhamAnand/EDAI-4/internal/ingest"
	"github.com/RidhamAnand/EDAI-4/internal/realtime"
	"github.com/RidhamAnand/EDAI-4/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

const maxScanBody = 1 << 20

type Server struct {
	repo     *store.Repo
	pipeline *ingest.Pipeline
	hub      *realtime.Hub
	origins  []string
}

func New(repo *store.Repo, pipeline *ingest.Pipeline, hub *realtime.Hub, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{repo: repo, pipeline: pipeline, hub: hub, origins: origins}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}
	r.Route("/api/scans", func(r chi.Router) {
		r.Post("/", s.handleIngest)
		r.Get("/", s.handleList)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScanBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	// Detach from the request context so a caller disconnect cannot abort a
	// write that would then go unnotified.
	sess, err := s.pipeline.Ingest(context.WithoutCancel(r.Context()), body, time.Now())
	if err != nil {
		s.writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": sess.ID.String(), "message": "stored"})
}

func (s *Server) writeIngestError(w http.ResponseWriter, err error) {
	var vErr *ingest.ValidationError
	var nErr *ingest.NormalizationError
	var sErr *ingest.StoreError
	switch {
	case errors.Is(err, ingest.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, vErr.Fields)
	case errors.As(err, &nErr):
		writeJSON(w, http.StatusBadRequest, map[string][]string{nErr.Field: {nErr.Reason}})
	case errors.As(err, &sErr):
		slog.Error("scan ingest store failure", "error", sErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "failed to store session",
			"details": "database unavailable",
		})
	default:
		slog.Error("scan ingest failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.Filter
	if v := strings.TrimSpace(q.Get("booth_id")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid booth_id")
			return
		}
		f.BoothID = n
	}
	f.DeviceID = strings.TrimSpace(q.Get("device_id"))

	rows, err := s.repo.List(r.Context(), f)
	if err != nil {
		slog.Error("session list failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "failed to fetch sessions",
			"details": "database unavailable",
		})
		return
	}
	if rows == nil {
		rows = []store.Session{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type jsonErr struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonErr{Error: msg, Code: status})
}
