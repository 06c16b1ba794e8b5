package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/terra-clan/ballot-kiosk/internal/results"
)

type resultsGatewayRequest struct {
	URL string `json:"url"`
}

type resultsGatewayResponse struct {
	URL        string `json:"url"`
	Configured bool   `json:"configured"`
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_input", "refresh must be a boolean")
			return
		}
		refresh = b
	}

	view, err := s.results.View(r.Context(), refresh)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetResultsGateway(w http.ResponseWriter, r *http.Request) {
	u, err := s.results.GatewayURL(r.Context())
	if err != nil {
		if errors.Is(err, results.ErrGatewayNotConfigured) {
			respondJSON(w, http.StatusOK, resultsGatewayResponse{})
			return
		}
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resultsGatewayResponse{URL: u, Configured: true})
}

func (s *Server) handlePutResultsGateway(w http.ResponseWriter, r *http.Request) {
	var req resultsGatewayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}

	u, err := s.results.SetGatewayURL(r.Context(), req.URL)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if client := ClientFromContext(r.Context()); client != nil {
		slog.Info("results gateway changed", "client", client.Name, "url", u)
	}

	respondJSON(w, http.StatusOK, resultsGatewayResponse{URL: u, Configured: true})
}
