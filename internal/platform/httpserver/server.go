package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	pollengine "unihub/contexts/campus-community/poll-engine"
	pollerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
	pollhttp "unihub/contexts/campus-community/poll-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "unihub/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	polls  pollengine.Module
}

func New(polls pollengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		polls:  polls,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /api/polls", s.handleListPolls)
	s.mux.HandleFunc("POST /api/polls", s.handleCreatePoll)
	s.mux.HandleFunc("GET /api/polls/{poll_id}", s.handleGetPoll)
	s.mux.HandleFunc("PUT /api/polls/{poll_id}", s.handleUpdatePoll)
	s.mux.HandleFunc("DELETE /api/polls/{poll_id}", s.handleClosePoll)
	s.mux.HandleFunc("POST /api/polls/{poll_id}/vote", s.handleCastVote)
	s.mux.HandleFunc("GET /api/polls/{poll_id}/results", s.handleGetResults)
}

func (s *Server) handleListPolls(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.polls.Handler.ListPollsHandler(
		r.Context(),
		query.Get("university"),
		query.Get("category"),
		query.Get("open") == "true",
	)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	var req pollhttp.CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polls.Handler.CreatePollHandler(r.Context(), userID, req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.GetPollHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdatePoll(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	var req pollhttp.UpdatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polls.Handler.UpdatePollHandler(r.Context(), userID, r.PathValue("poll_id"), req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClosePoll(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	if err := s.polls.Handler.ClosePollHandler(r.Context(), userID, r.PathValue("poll_id")); err != nil {
		writePollDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	var req pollhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polls.Handler.CastVoteHandler(r.Context(), userID, r.PathValue("poll_id"), req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.ResultsHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePollDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pollerrors.ErrPollNotFound):
		writePollError(w, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, pollerrors.ErrPollClosed):
		writePollError(w, http.StatusGone, "poll_closed", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidOption):
		writePollError(w, http.StatusUnprocessableEntity, "invalid_option", err.Error())
	case errors.Is(err, pollerrors.ErrNotPollCreator):
		writePollError(w, http.StatusForbidden, "not_poll_creator", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidPollInput),
		errors.Is(err, pollerrors.ErrDeadlineInPast):
		writePollError(w, http.StatusBadRequest, "invalid_poll_input", err.Error())
	case errors.Is(err, pollerrors.ErrConflict):
		writePollError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writePollError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePollError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pollhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requestUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}
