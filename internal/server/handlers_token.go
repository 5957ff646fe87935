package server

import (
	"errors"
	"net/http"

	"github.com/DhisHub/wapi-dashboard/internal/db"
)

// handleGetToken returns the account's current API token, if any.
func (s *Service) handleGetToken(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	token, err := s.auth.CurrentToken(r.Context(), user.ID)
	if errors.Is(err, db.ErrNoToken) {
		writeJSON(w, http.StatusOK, map[string]any{"token": nil})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch token")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// handleGenerateToken mints a new API token, replacing any previous one for
// this account only.
func (s *Service) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	token, err := s.auth.GenerateToken(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, token)
}
