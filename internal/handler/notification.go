package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/choregate/internal/auth"
	"github.com/dukerupert/choregate/internal/model"
	"github.com/dukerupert/choregate/internal/notify"
)

type NotificationService interface {
	List(ctx context.Context, actor auth.Actor) ([]model.Notification, error)
	CreateManual(ctx context.Context, actor auth.Actor, in notify.Input) (*model.Notification, error)
	MarkRead(ctx context.Context, actor auth.Actor, id int64) (*model.Notification, error)
	Delete(ctx context.Context, actor auth.Actor, id int64) error
}

type NotificationHandler struct {
	notifications NotificationService
	logger        *slog.Logger
}

func NewNotificationHandler(n NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: n, logger: logger.With("component", "notification_handler")}
}

type notificationRequest struct {
	UserID         int64                  `json:"user_id"`
	ChoreID        *int64                 `json:"chore_id"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Type           model.NotificationType `json:"type"`
	DeliveryMethod model.DeliveryMethod   `json:"delivery_method"`
	ScheduledFor   *time.Time             `json:"scheduled_for"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.notifications.List(r.Context(), a)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req notificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	in := notify.Input{
		UserID:         req.UserID,
		ChoreID:        req.ChoreID,
		Title:          req.Title,
		Message:        req.Message,
		Type:           req.Type,
		DeliveryMethod: req.DeliveryMethod,
	}
	if req.ScheduledFor != nil {
		in.ScheduledFor = *req.ScheduledFor
	}
	n, err := h.notifications.CreateManual(r.Context(), a, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	n, err := h.notifications.MarkRead(r.Context(), a, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.notifications.Delete(r.Context(), a, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
