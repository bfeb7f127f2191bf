package access

import (
	"context"
	"log/slog"

	"github.com/dukerupert/choregate/internal/apperr"
	"github.com/dukerupert/choregate/internal/auth"
	"github.com/dukerupert/choregate/internal/model"
)

// UserStore is the subset of user persistence the access service reads.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

// Service exposes manual overrides and status reads for parents.
type Service struct {
	users  UserStore
	gate   *Gate
	logger *slog.Logger
}

func NewService(users UserStore, gate *Gate, logger *slog.Logger) *Service {
	return &Service{users: users, gate: gate, logger: logger.With("component", "access")}
}

// Override grants or revokes access for a user regardless of chore state.
// Unlike lifecycle grants, a user without a registered device is rejected,
// and a router failure is reported to the caller after the flag is saved.
func (s *Service) Override(ctx context.Context, actor auth.Actor, userID int64, allow bool) (*model.User, error) {
	if err := auth.Authorize(auth.OpAccessOverride, actor, auth.Resource{OwnerID: userID}); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "load user")
	}
	if u == nil {
		return nil, apperr.NotFound("user %d not found", userID)
	}
	if !u.HasDevice() {
		return nil, apperr.Validation("user has no registered device")
	}

	res, err := s.gate.apply(ctx, u, allow)
	if err != nil {
		if res == ResultFailed {
			return u, apperr.Internal(err, "failed to update router settings")
		}
		return nil, apperr.Internal(err, "save access flag")
	}
	s.logger.Info("access overridden", "user_id", u.ID, "allow", allow, "by", actor.UserID)
	return u, nil
}

// Children lists every child with their current access flag.
func (s *Service) Children(ctx context.Context, actor auth.Actor) ([]model.User, error) {
	if err := auth.Authorize(auth.OpAccessViewAll, actor, auth.Resource{}); err != nil {
		return nil, err
	}
	kids, err := s.users.ListByRole(ctx, model.RoleChild)
	if err != nil {
		return nil, apperr.Internal(err, "list children")
	}
	return kids, nil
}

// Me returns the actor's own access flag.
func (s *Service) Me(ctx context.Context, actor auth.Actor) (bool, error) {
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return false, apperr.Internal(err, "load user")
	}
	if u == nil {
		return false, apperr.NotFound("user %d not found", actor.UserID)
	}
	return u.InternetAccess, nil
}
