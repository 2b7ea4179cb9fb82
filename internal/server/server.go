// Package server exposes the assistant sessions and the farm analyses over
// JSON/HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/comigor/ecofarmcast-go/internal/analysis"
	"github.com/comigor/ecofarmcast-go/internal/assistant"
	"github.com/comigor/ecofarmcast-go/internal/gateway"
	"github.com/comigor/ecofarmcast-go/internal/history"
	"github.com/comigor/ecofarmcast-go/internal/logger"
	"github.com/comigor/ecofarmcast-go/internal/transcript"
)

// Analyzer is the part of analysis.Service the server needs.
type Analyzer interface {
	Run(ctx context.Context, name string, farm analysis.FarmData) (any, error)
	Previous(ctx context.Context, farmID string, typ analysis.Type, limit int) ([]analysis.Record, error)
}

// Server routes HTTP requests to sessions and analyses.
type Server struct {
	sessions *assistant.Manager
	archive  *history.Store // may be nil
	analyses Analyzer
	mux      *http.ServeMux
}

func New(sessions *assistant.Manager, archive *history.Store, analyses Analyzer) *Server {
	s := &Server{sessions: sessions, archive: archive, analyses: analyses, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions/{id}", s.withSession(s.handleGetSession))
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)

	s.mux.HandleFunc("PUT /sessions/{id}/context", s.withSession(s.handleSetContext))
	s.mux.HandleFunc("GET /sessions/{id}/context", s.withSession(s.handleGetContext))
	s.mux.HandleFunc("GET /sessions/{id}/prompt", s.withSession(s.handleGetPrompt))
	s.mux.HandleFunc("GET /sessions/{id}/suggestions", s.withSession(s.handleGetSuggestions))
	s.mux.HandleFunc("POST /sessions/{id}/open", s.withSession(s.handleOpen))

	s.mux.HandleFunc("POST /sessions/{id}/messages", s.withSession(s.handleSend))
	s.mux.HandleFunc("GET /sessions/{id}/messages", s.withSession(s.handleListMessages))
	s.mux.HandleFunc("DELETE /sessions/{id}/messages", s.withSession(s.handleClearMessages))
	s.mux.HandleFunc("GET /sessions/{id}/history", s.withSession(s.handleHistory))

	s.mux.HandleFunc("POST /analyses/{type}", s.handleRunAnalysis)
	s.mux.HandleFunc("GET /analyses", s.handleListAnalyses)
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		logger.L.Info("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.L.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *assistant.Session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h(w, r, sess)
	}
}

type contextRequest struct {
	PageName string          `json:"page_name"`
	PageData json.RawMessage `json:"page_data"`
}

type sendRequest struct {
	Text    string          `json:"text"`
	Options gateway.Options `json:"options"`
}

type sessionResponse struct {
	ID       string          `json:"id"`
	Status   assistant.State `json:"status"`
	PageName string          `json:"page_name,omitempty"`
	Messages int             `json:"messages"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"id": sess.ID()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, sess *assistant.Session) {
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:       sess.ID(),
		Status:   sess.Status(),
		PageName: sess.Context().PageName,
		Messages: len(sess.Messages()),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request, sess *assistant.Session) {
	var req contextRequest
	if !decode(w, r, &req) {
		return
	}
	sess.SetPageContext(req.PageName, req.PageData)
	writeJSON(w, http.StatusOK, sess.Context())
}

func (s *Server) handleGetContext(w http.ResponseWriter, _ *http.Request, sess *assistant.Session) {
	writeJSON(w, http.StatusOK, sess.Context())
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, _ *http.Request, sess *assistant.Session) {
	writeJSON(w, http.StatusOK, map[string]string{"prompt": sess.Prompt()})
}

func (s *Server) handleGetSuggestions(w http.ResponseWriter, _ *http.Request, sess *assistant.Session) {
	suggestions := sess.Suggestions()
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request, sess *assistant.Session) {
	var req contextRequest
	if !decode(w, r, &req) {
		return
	}
	m := sess.Open(r.Context(), req.PageName, req.PageData)
	writeJSON(w, http.StatusOK, map[string]*transcript.Message{"message": m})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, sess *assistant.Session) {
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	// failures are carried by the message itself
	writeJSON(w, http.StatusOK, sess.Send(r.Context(), req.Text, req.Options))
}

func (s *Server) handleListMessages(w http.ResponseWriter, _ *http.Request, sess *assistant.Session) {
	writeJSON(w, http.StatusOK, sess.Messages())
}

func (s *Server) handleClearMessages(w http.ResponseWriter, _ *http.Request, sess *assistant.Session) {
	sess.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request, sess *assistant.Session) {
	entries := []history.Message{}
	if s.archive != nil {
		entries = s.archive.List(sess.ID())
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var farm analysis.FarmData
	if !decode(w, r, &farm) {
		return
	}
	res, err := s.analyses.Run(r.Context(), r.PathValue("type"), farm)
	switch {
	case errors.Is(err, analysis.ErrUnknownAnalysis):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		logger.L.Error("analysis failed", "type", r.PathValue("type"), "farm", farm.ID, "error", err)
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	farmID := q.Get("farm_id")
	if farmID == "" {
		writeError(w, http.StatusBadRequest, errors.New("farm_id is required"))
		return
	}
	limit := 0
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	records, err := s.analyses.Previous(r.Context(), farmID, analysis.Type(q.Get("type")), limit)
	if err != nil {
		logger.L.Error("listing analyses failed", "farm", farmID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// maxBodyBytes caps request bodies; farm payloads are well under this.
const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(v)
	if err == nil {
		// exactly one JSON value per body
		if _, tokErr := dec.Token(); !errors.Is(tokErr, io.EOF) {
			err = errors.New("trailing data")
		}
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
			return false
		}
		writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
