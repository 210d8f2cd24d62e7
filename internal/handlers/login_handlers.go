package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/overmark/roomaccess/internal/domain"
	"github.com/overmark/roomaccess/pkg/logger"
)

// CodeLogin is the login entry point behind the printed QR codes. The client
// posts the code it scanned from <origin>/login?code=<code>.
func (h *Handlers) CodeLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.CodeLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	response, err := h.loginService.LoginWithCode(r.Context(), &req)
	if err != nil {
		h.writeLoginError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// StaffLogin authenticates staff for the admin panel.
func (h *Handlers) StaffLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.StaffLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	response, err := h.loginService.StaffLogin(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrAuthenticationFailed) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password", "AUTH_FAILED")
			return
		}
		logger.ErrorContext(r.Context(), "Staff login failed", "error", err)
		writeError(w, http.StatusBadGateway, "Login is temporarily unavailable. Please try again.", "TRANSIENT_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// writeLoginError maps the error taxonomy onto resident-facing responses.
// The invalid-code message is identical whether the code never existed or was
// rotated out.
func (h *Handlers) writeLoginError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidOrExpiredCode):
		writeError(w, http.StatusUnauthorized, "This code is not valid. Scan again or contact staff.", "INVALID_OR_EXPIRED_CODE")
	case errors.Is(err, domain.ErrAuthenticationFailed):
		logger.WarnContext(r.Context(), "Code login rejected by authentication service")
		writeError(w, http.StatusUnauthorized, "Login failed. Contact staff for a new code.", "AUTH_FAILED")
	case errors.Is(err, domain.ErrProvisioningFailed):
		writeError(w, http.StatusBadGateway, "Could not complete login. Please try again.", "PROVISIONING_FAILED")
	default:
		logger.ErrorContext(r.Context(), "Code login failed", "error", err)
		writeError(w, http.StatusBadGateway, "Login is temporarily unavailable. Please try again.", "TRANSIENT_ERROR")
	}
}
