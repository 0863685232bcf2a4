// Package api exposes the coordinator, capture pipeline, and notes store to
// UI surfaces over a local HTTP command API.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zenapp/glimpse/internal/capture"
	"github.com/zenapp/glimpse/internal/coordinator"
	"github.com/zenapp/glimpse/internal/notes"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	coord    *coordinator.Coordinator
	pipeline *capture.Pipeline
	notes    *notes.Store
	router   chi.Router
	port     int
}

func NewServer(coord *coordinator.Coordinator, pipeline *capture.Pipeline, ns *notes.Store, port int) *Server {
	srv := &Server{
		coord:    coord,
		pipeline: pipeline,
		notes:    ns,
		port:     port,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)

		r.Get("/chat/messages", srv.handleGetMessages)
		r.Post("/chat/send", srv.handleSend)
		r.Post("/chat/clear", srv.handleClear)

		r.Post("/capture", srv.handleCapture)
		r.Get("/capture", srv.handleCaptureState)
		r.Delete("/capture", srv.handleCaptureDiscard)

		r.Get("/notes", srv.handleListNotes)
		r.Post("/notes", srv.handleCreateNote)
		r.Get("/notes/{noteID}", srv.handleGetNote)
		r.Delete("/notes/{noteID}", srv.handleDeleteNote)
	})

	srv.router = r
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "glimpsed",
		"streaming": s.coord.Streaming(),
		"capture":   s.pipeline.State().Status.String(),
	})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Messages())
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	// A Ready capture rides along with this turn and is consumed only once
	// the stream is actually set up.
	upload := s.pipeline.State().Upload

	if err := s.coord.Send(r.Context(), req.Text, upload); err != nil {
		switch {
		case errors.Is(err, coordinator.ErrEmptyMessage):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, coordinator.ErrBusy):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			slog.Error("send failed", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return
	}

	if upload != nil {
		s.pipeline.Consume()
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "streaming"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Clear(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.Run(r.Context()); err != nil {
		switch {
		case errors.Is(err, capture.ErrInProgress):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, capture.ErrPermissionDenied):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		case errors.Is(err, capture.ErrInvalidImage):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			slog.Error("capture failed", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, captureStateBody(s.pipeline.State()))
}

func (s *Server) handleCaptureState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, captureStateBody(s.pipeline.State()))
}

func (s *Server) handleCaptureDiscard(w http.ResponseWriter, r *http.Request) {
	s.pipeline.Discard()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	ns, err := s.notes.List(r.Context())
	if err != nil {
		slog.Error("list notes failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if ns == nil {
		ns = []notes.Note{}
	}
	writeJSON(w, http.StatusOK, ns)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	n, err := s.notes.Create(r.Context(), req.Title, req.Body)
	if err != nil {
		slog.Error("create note failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid note id"})
		return
	}

	n, err := s.notes.Get(r.Context(), id)
	if errors.Is(err, notes.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "note not found"})
		return
	}
	if err != nil {
		slog.Error("get note failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid note id"})
		return
	}

	if err := s.notes.Delete(r.Context(), id); err != nil {
		if errors.Is(err, notes.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "note not found"})
			return
		}
		slog.Error("delete note failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// captureStateBody shapes the pipeline snapshot for clients; the preview
// travels base64-encoded for inline display.
func captureStateBody(st capture.Session) map[string]any {
	body := map[string]any{"status": st.Status.String()}
	if st.Upload != nil {
		body["upload"] = st.Upload
	}
	if st.Preview != nil {
		body["preview"] = base64.StdEncoding.EncodeToString(st.Preview)
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
