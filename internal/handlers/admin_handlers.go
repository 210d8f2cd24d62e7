package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/overmark/roomaccess/internal/domain"
	"github.com/overmark/roomaccess/pkg/logger"
	"github.com/skip2/go-qrcode"
)

// RoomOverview lists every room with or without an active code.
func (h *Handlers) RoomOverview(w http.ResponseWriter, r *http.Request) {
	entries, err := h.registry.RoomOverview(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to build room overview", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list rooms", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// ListCodes returns all active codes, sorted by room, for the admin grid and
// the print-all flow.
func (h *Handlers) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.registry.ListActive(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list active codes", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list codes", "INTERNAL_ERROR")
		return
	}

	type codeWithURL struct {
		domain.RoomCode
		LoginURL string `json:"login_url"`
	}

	out := make([]codeWithURL, len(codes))
	for i, rc := range codes {
		out[i] = codeWithURL{RoomCode: rc, LoginURL: h.registry.LoginURL(rc.Code)}
	}

	writeJSON(w, http.StatusOK, out)
}

// IssueCode creates the first code for a room. Rooms with an active code get
// a conflict; the client directs staff to the rotate flow instead.
func (h *Handlers) IssueCode(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	var req domain.IssueCodeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
			return
		}
	}
	req.Normalize()

	rc, err := h.registry.IssueCode(r.Context(), room, req.ResidentName, issuerFrom(r))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrActiveCodeExists):
			writeError(w, http.StatusConflict, "Room already has an active code. Rotate it instead.", "ACTIVE_CODE_EXISTS")
		case errors.Is(err, domain.ErrDuplicateActiveCode):
			logger.ErrorContext(r.Context(), "Duplicate active code detected", "room", room)
			writeError(w, http.StatusInternalServerError, "Code issuance failed", "DUPLICATE_ACTIVE_CODE")
		default:
			logger.ErrorContext(r.Context(), "Failed to issue code", "error", err, "room", room)
			writeError(w, http.StatusInternalServerError, "Failed to issue code", "INTERNAL_ERROR")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"code":      rc,
		"login_url": h.registry.LoginURL(rc.Code),
	})
}

// RotateCode supersedes a room's code. The old code stops working the moment
// this returns; the confirmation step lives in the UI.
func (h *Handlers) RotateCode(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	rc, err := h.registry.RotateCode(r.Context(), room, issuerFrom(r))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoActiveCode):
			writeError(w, http.StatusNotFound, "Room has no active code to rotate. Issue one first.", "NO_ACTIVE_CODE")
		default:
			logger.ErrorContext(r.Context(), "Failed to rotate code", "error", err, "room", room)
			writeError(w, http.StatusInternalServerError, "Failed to rotate code", "INTERNAL_ERROR")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":      rc,
		"login_url": h.registry.LoginURL(rc.Code),
	})
}

// RoomHistory returns a room's full code history, newest first, for audit.
func (h *Handlers) RoomHistory(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	history, err := h.registry.RoomHistory(r.Context(), room)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load room history", "error", err, "room", room)
		writeError(w, http.StatusInternalServerError, "Failed to load history", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// LoginURL serves the copy-login-URL affordance for a room's active code.
func (h *Handlers) LoginURL(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		writeError(w, http.StatusBadRequest, "Missing room parameter", "INVALID_INPUT")
		return
	}

	rc, err := h.activeCodeForRoom(w, r, room)
	if rc == nil || err != nil {
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"room_number": rc.RoomNumber,
		"login_url":   h.registry.LoginURL(rc.Code),
	})
}

// QRCodePNG renders the scannable image for a room's active code, used by the
// print-one and print-all flows.
func (h *Handlers) QRCodePNG(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	rc, err := h.activeCodeForRoom(w, r, room)
	if rc == nil || err != nil {
		return
	}

	size := 400
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 128 && n <= 1024 {
			size = n
		}
	}

	png, err := qrcode.Encode(h.registry.LoginURL(rc.Code), qrcode.Medium, size)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to render QR code", "error", err, "room", room)
		writeError(w, http.StatusInternalServerError, "Failed to render QR code", "INTERNAL_ERROR")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handlers) activeCodeForRoom(w http.ResponseWriter, r *http.Request, room string) (*domain.RoomCode, error) {
	rc, err := h.registry.ActiveCodeForRoom(r.Context(), room)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Room has no active code", "NO_ACTIVE_CODE")
		return nil, nil
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to look up room", "error", err, "room", room)
		writeError(w, http.StatusInternalServerError, "Failed to look up room", "INTERNAL_ERROR")
		return nil, err
	}
	return rc, nil
}

func issuerFrom(r *http.Request) string {
	if claims := getClaims(r); claims != nil {
		return claims.Sub
	}
	return ""
}
