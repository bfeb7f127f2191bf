package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/choregate/internal/apperr"
	"github.com/dukerupert/choregate/internal/auth"
	"github.com/dukerupert/choregate/internal/model"
)

type AccessService interface {
	Override(ctx context.Context, actor auth.Actor, userID int64, allow bool) (*model.User, error)
	Children(ctx context.Context, actor auth.Actor) ([]model.User, error)
	Me(ctx context.Context, actor auth.Actor) (bool, error)
}

type AccessHandler struct {
	access AccessService
	logger *slog.Logger
}

func NewAccessHandler(a AccessService, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{access: a, logger: logger.With("component", "access_handler")}
}

type accessStatus struct {
	UserID         int64  `json:"user_id"`
	Name           string `json:"name"`
	InternetAccess bool   `json:"internet_access"`
	DeviceMAC      string `json:"device_mac,omitempty"`
}

func newAccessStatus(u *model.User) accessStatus {
	return accessStatus{UserID: u.ID, Name: u.Name, InternetAccess: u.InternetAccess, DeviceMAC: u.DeviceMAC}
}

// Status lists every child's access flag. Parents only.
func (h *AccessHandler) Status(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	kids, err := h.access.Children(r.Context(), a)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]accessStatus, 0, len(kids))
	for i := range kids {
		out = append(out, newAccessStatus(&kids[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AccessHandler) Me(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	allowed, err := h.access.Me(r.Context(), a)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"internet_access": allowed})
}

type overrideRequest struct {
	UserID int64 `json:"user_id"`
	Allow  *bool `json:"allow"`
}

func (h *AccessHandler) Override(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.UserID == 0 || req.Allow == nil {
		writeError(w, r, h.logger, apperr.Validation("user_id and allow are required"))
		return
	}
	u, err := h.access.Override(r.Context(), a, req.UserID, *req.Allow)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccessStatus(u))
}
