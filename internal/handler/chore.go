package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/choregate/internal/access"
	"github.com/dukerupert/choregate/internal/apperr"
	"github.com/dukerupert/choregate/internal/auth"
	"github.com/dukerupert/choregate/internal/chore"
	"github.com/dukerupert/choregate/internal/model"
	"github.com/dukerupert/choregate/internal/recurrence"
)

type ChoreService interface {
	Create(ctx context.Context, actor auth.Actor, in chore.CreateInput) (*model.Chore, error)
	Update(ctx context.Context, actor auth.Actor, id int64, in chore.UpdateInput) (*model.Chore, error)
	Complete(ctx context.Context, actor auth.Actor, id int64) (*chore.Outcome, error)
	Verify(ctx context.Context, actor auth.Actor, id int64, approved bool) (*chore.Outcome, error)
	Delete(ctx context.Context, actor auth.Actor, id int64) error
	Get(ctx context.Context, actor auth.Actor, id int64) (*model.Chore, error)
	List(ctx context.Context, actor auth.Actor, f chore.ListFilter) ([]model.Chore, error)
}

type ChoreHandler struct {
	chores ChoreService
	logger *slog.Logger
}

func NewChoreHandler(chores ChoreService, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: chores, logger: logger.With("component", "chore_handler")}
}

// choreResponse adds a readable recurrence summary to the stored chore.
type choreResponse struct {
	*model.Chore
	Recurrence           string `json:"recurrence,omitempty"`
	AwaitingVerification bool   `json:"awaiting_verification"`
}

func newChoreResponse(c *model.Chore) choreResponse {
	return choreResponse{
		Chore:                c,
		Recurrence:           recurrence.Describe(c),
		AwaitingVerification: chore.AwaitingVerification(c),
	}
}

type outcomeResponse struct {
	Chore  choreResponse `json:"chore"`
	Access access.Result `json:"access,omitempty"`
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in chore.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.chores.Create(r.Context(), a, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newChoreResponse(c))
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	f := chore.ListFilter{Status: model.ChoreStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("assigned_to"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, h.logger, apperr.Validation("invalid assigned_to %q", v))
			return
		}
		f.AssignedTo = id
	}
	chores, err := h.chores.List(r.Context(), a, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]choreResponse, 0, len(chores))
	for i := range chores {
		out = append(out, newChoreResponse(&chores[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.chores.Get(r.Context(), a, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newChoreResponse(c))
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in chore.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.chores.Update(r.Context(), a, id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newChoreResponse(c))
}

func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out, err := h.chores.Complete(r.Context(), a, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Chore: newChoreResponse(out.Chore), Access: out.Access})
}

type verifyRequest struct {
	Approved *bool `json:"approved"`
}

func (h *ChoreHandler) Verify(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Approved == nil {
		writeError(w, r, h.logger, apperr.Validation("approved is required"))
		return
	}
	out, err := h.chores.Verify(r.Context(), a, id, *req.Approved)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Chore: newChoreResponse(out.Chore), Access: out.Access})
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.chores.Delete(r.Context(), a, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorAndID(r *http.Request) (auth.Actor, int64, error) {
	a, err := actor(r)
	if err != nil {
		return auth.Actor{}, 0, err
	}
	id, err := parseIDParam(r)
	if err != nil {
		return auth.Actor{}, 0, err
	}
	return a, id, nil
}
