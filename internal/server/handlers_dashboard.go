package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DhisHub/wapi-dashboard/internal/dashboard"
	"github.com/DhisHub/wapi-dashboard/internal/gateway"
)

// viewModel returns the mounted view-model for the authenticated account.
func (s *Service) viewModel(r *http.Request) *dashboard.ViewModel {
	user := currentUser(r)
	return s.dashboards.Get(r.Context(), user.ID, user.Email)
}

// handleState returns the current view-model snapshot. The session list in
// it is already filtered to the account's own sessions; the unfiltered
// gateway listing is never exposed.
func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.viewModel(r).Snapshot())
}

// handleEvents streams view-model snapshots over SSE.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	vm := s.viewModel(r)
	user := currentUser(r)

	// Push the current state immediately so a fresh tab renders without
	// waiting for the next change.
	go s.sse.BroadcastTo(user.ID, vm.Snapshot())
	s.sse.Serve(w, r, user.ID)
}

type createSessionRequest struct {
	Name  string `json:"name"`
	Tell  string `json:"tell"`
	Email string `json:"email"`
}

// handleCreateSession creates a session owned by the account.
func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Tell == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Name, tell and email are required")
		return
	}

	resp := s.viewModel(r).Create(r.Context(), req.Name, req.Tell, req.Email)
	status := http.StatusOK
	if resp.Error {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// handleRefresh re-fetches the session list.
func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	vm := s.viewModel(r)
	vm.Refresh(r.Context(), vm.Selected())
	writeJSON(w, http.StatusOK, vm.Snapshot())
}

// handleSelect changes the selected session and re-fetches its panels.
func (s *Service) handleSelect(w http.ResponseWriter, r *http.Request) {
	vm := s.viewModel(r)
	vm.Select(r.Context(), chi.URLParam(r, "name"))
	writeJSON(w, http.StatusOK, vm.Snapshot())
}

// handleAction requests a lifecycle transition on the selected session.
func (s *Service) handleAction(w http.ResponseWriter, r *http.Request) {
	action := gateway.Action(chi.URLParam(r, "action"))
	if !action.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown session action")
		return
	}

	vm := s.viewModel(r)
	if name := chi.URLParam(r, "name"); name != vm.Selected() {
		vm.Select(r.Context(), name)
	}
	vm.Action(r.Context(), action)
	writeJSON(w, http.StatusOK, vm.Snapshot())
}

// handleDeleteSession deletes a session and reloads the view.
func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	vm := s.viewModel(r)
	if name := chi.URLParam(r, "name"); name != vm.Selected() {
		vm.Select(r.Context(), name)
	}
	vm.Delete(r.Context())
	writeJSON(w, http.StatusOK, vm.Snapshot())
}

// handleQR serves the held QR image as raw bytes for the <img> tag.
func (s *Service) handleQR(w http.ResponseWriter, r *http.Request) {
	img, ok := s.viewModel(r).QR()
	if !ok {
		writeError(w, http.StatusNotFound, "QR code not available")
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(img.Data)
}

// handleRetryQR is the manual QR refresh control.
func (s *Service) handleRetryQR(w http.ResponseWriter, r *http.Request) {
	vm := s.viewModel(r)
	vm.RetryQR(r.Context())
	writeJSON(w, http.StatusOK, vm.Snapshot())
}
