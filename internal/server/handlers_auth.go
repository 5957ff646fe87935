package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignUp validates the form locally and delegates registration.
// Validation failures never reach the identity provider.
func (s *Service) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.auth.SignUp(r.Context(), req.Name, req.Email, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"success": "Thanks for signing up! Please check your email.",
	})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignIn delegates the credential check and returns the provider's
// token grant; on failure the provider's message is returned verbatim.
func (s *Service) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	grant, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  grant.AccessToken,
		"refresh_token": grant.RefreshToken,
		"user":          grant.User,
		"redirect":      "/dashboard",
	})
}

// handleSignOut revokes the session upstream. A failed revoke is logged but
// the client forgets its token either way.
func (s *Service) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), accessToken(r)); err != nil {
		log.Warn().Err(err).Msg("Sign-out failed upstream")
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": "/"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// handleForgotPassword starts the two-step reset flow.
func (s *Service) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		// The provider's own failure is masked; the form shows a generic
		// message so the flow does not leak whether the email exists.
		log.Error().Err(err).Msg("Password reset request failed")
		writeError(w, http.StatusBadRequest, "Could not reset password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"success": "Check your email for a link to reset your password.",
	})
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// handleResetPassword is the confirmation step: mismatch and length are
// rejected locally before any network call.
func (s *Service) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.auth.ResetPassword(r.Context(), accessToken(r), req.Password, req.ConfirmPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"success": "Password updated"})
}

// handleProfile returns the authenticated account for the settings page.
func (s *Service) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

// handleDeleteAccount removes the identity record and every token row for
// the account, then drops its mounted view-model.
func (s *Service) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	if err := s.auth.DeleteAccount(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.dashboards.Drop(user.ID)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "redirect": "/"})
}
