package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/choregate/internal/metrics"
	"github.com/dukerupert/choregate/internal/model"
)

// FlagStore persists the per-user internet access flag.
type FlagStore interface {
	SetInternetAccess(ctx context.Context, userID int64, allow bool) error
}

// Gate applies grants and revokes. The flag is written first and is never
// rolled back when the router call fails.
type Gate struct {
	flags   FlagStore
	ctrl    Controller
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewGate(flags FlagStore, ctrl Controller, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gate{
		flags:   flags,
		ctrl:    ctrl,
		timeout: timeout,
		metrics: m,
		logger:  logger.With("component", "access"),
	}
}

// Grant sets the user's access flag and opens the router for their device.
// A non-nil error with ResultFailed means the flag was saved but the router
// call failed; callers treat that as non-fatal. Any other error means the
// flag itself could not be saved.
func (g *Gate) Grant(ctx context.Context, u *model.User) (Result, error) {
	return g.apply(ctx, u, true)
}

// Revoke clears the user's access flag and blocks their device.
func (g *Gate) Revoke(ctx context.Context, u *model.User) (Result, error) {
	return g.apply(ctx, u, false)
}

func (g *Gate) apply(ctx context.Context, u *model.User, allow bool) (Result, error) {
	action := "revoke"
	if allow {
		action = "grant"
	}

	if err := g.flags.SetInternetAccess(ctx, u.ID, allow); err != nil {
		return "", fmt.Errorf("%s access for user %d: %w", action, u.ID, err)
	}
	u.InternetAccess = allow

	if !u.HasDevice() {
		g.logger.Info("no device registered, router not updated", "user_id", u.ID, "action", action)
		g.metrics.AccessChange(action, string(ResultSkippedNoDevice))
		return ResultSkippedNoDevice, nil
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.ctrl.SetAccess(cctx, u.DeviceMAC, allow); err != nil {
		g.logger.Error("router update failed", "user_id", u.ID, "mac", u.DeviceMAC, "action", action, "error", err)
		g.metrics.AccessChange(action, string(ResultFailed))
		return ResultFailed, fmt.Errorf("router %s for user %d: %w", action, u.ID, err)
	}

	g.logger.Info("router updated", "user_id", u.ID, "mac", u.DeviceMAC, "action", action)
	g.metrics.AccessChange(action, string(ResultApplied))
	return ResultApplied, nil
}
