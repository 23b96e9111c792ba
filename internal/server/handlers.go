package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/demon607/Summarization-Service-Build/internal/fetch"
	"github.com/demon607/Summarization-Service-Build/internal/model"
	"github.com/demon607/Summarization-Service-Build/internal/safeurl"
	"github.com/demon607/Summarization-Service-Build/internal/service"
	"github.com/demon607/Summarization-Service-Build/internal/store"
	"github.com/demon607/Summarization-Service-Build/internal/textclean"
)

type submitRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Request body must be JSON with a url field.")
		return
	}

	article, err := s.svc.Submit(r.Context(), clientIP(r), req.URL)
	if err != nil {
		s.writeUserError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, article)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{
		Query: r.URL.Query().Get("q"),
		Sort:  r.URL.Query().Get("sort"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.Status(raw)
		if !status.Valid() {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status filter: %q.", raw))
			return
		}
		opts.Status = status
	}

	articles, err := s.svc.List(r.Context(), opts)
	if err != nil {
		s.writeUserError(w, err)
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	s.writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}
	article, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeUserError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Retry(r.Context(), id); err != nil {
		s.writeUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}
	raw, err := s.svc.Snapshot(r.Context(), id)
	if err != nil {
		s.writeUserError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(s.sanitizer.SanitizeBytes(raw))
}

// handleEvents streams article status transitions as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "Streaming is not supported.")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("failed to encode event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeUserError maps submission-flow errors to HTTP statuses while keeping
// their user-facing messages intact.
func (s *Server) writeUserError(w http.ResponseWriter, err error) {
	var validationErr *safeurl.ValidationError
	var fetchErr *fetch.Error

	switch {
	case errors.Is(err, service.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		s.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrURLRequired), errors.Is(err, service.ErrURLTooLong):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, textclean.ErrTooShort), errors.Is(err, textclean.ErrGarbled):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, validationErr.Reason)
	case errors.As(err, &fetchErr):
		s.writeError(w, fetchStatus(fetchErr.Kind), fetchErr.Message)
	default:
		s.log.Error("unexpected error", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError,
			"An unexpected error occurred. Please try again later.")
	}
}

func fetchStatus(kind fetch.ErrKind) int {
	switch kind {
	case fetch.KindTimeout:
		return http.StatusGatewayTimeout
	case fetch.KindUnsupportedType:
		return http.StatusUnsupportedMediaType
	case fetch.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadGateway
	}
}
