package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/ballot-kiosk/internal/ballot"
	"github.com/terra-clan/ballot-kiosk/internal/models"
	"github.com/terra-clan/ballot-kiosk/internal/results"
	"github.com/terra-clan/ballot-kiosk/internal/voting"
	"github.com/terra-clan/ballot-kiosk/pkg/tally"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondDomainError maps controller and results errors to API codes.
// Results errors wrap gateway errors, so they are matched first.
func respondDomainError(w http.ResponseWriter, err error) {
	var rej *tally.RejectedError

	switch {
	case errors.Is(err, results.ErrGatewayNotConfigured):
		respondError(w, http.StatusConflict, "gateway_not_configured", err.Error())
	case errors.Is(err, results.ErrInvalidGatewayURL):
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, results.ErrSummaryUnavailable):
		respondError(w, http.StatusBadGateway, "summary_unavailable", err.Error())
	case errors.Is(err, voting.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, voting.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "verify a token first")
	case errors.Is(err, ballot.ErrCapacityExceeded):
		respondError(w, http.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, ballot.ErrUnknownCategory):
		respondError(w, http.StatusNotFound, "unknown_category", err.Error())
	case errors.Is(err, voting.ErrIncomplete):
		respondError(w, http.StatusUnprocessableEntity, "incomplete_ballot", err.Error())
	case errors.Is(err, voting.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, voting.ErrPollClosed):
		respondError(w, http.StatusGone, "poll_closed", err.Error())
	case errors.Is(err, voting.ErrStaleResponse):
		respondError(w, http.StatusConflict, "stale_response", err.Error())
	case errors.As(err, &rej):
		respondError(w, http.StatusUnprocessableEntity, "rejected", rej.Message)
	case errors.Is(err, tally.ErrConnectivity):
		respondError(w, http.StatusBadGateway, "connectivity_failure", "the tally gateway is unreachable")
	default:
		slog.Error("unexpected error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for name, check := range s.checks {
		if err := check.Ping(r.Context()); err != nil {
			slog.Warn("readiness check failed", "dependency", name, "error", err)
			respondError(w, http.StatusServiceUnavailable, "not_ready", name+" not ready")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Voter handlers

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.controller.Catalog()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pollId":     s.controller.PollID(),
		"categories": cat.Categories,
		"people":     cat.People,
	})
}

func (s *Server) handleGetBallot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}

	if err := s.controller.Verify(r.Context(), req.Token); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleSelectNominee(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")

	var req models.SelectNomineeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	if req.PersonID == "" {
		respondError(w, http.StatusBadRequest, "invalid_input", "personId is required")
		return
	}

	if err := s.controller.Select(categoryID, req.PersonID); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleDeselectNominee(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")
	personID := chi.URLParam(r, "personId")

	if err := s.controller.Deselect(categoryID, personID); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleSubmitBallot(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Submit(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}
