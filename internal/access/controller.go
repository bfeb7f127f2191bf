// Package access enforces internet access on the household router. The
// persisted per-user flag is authoritative; router calls mirror it best
// effort.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// Controller toggles network access for a device identified by MAC address.
type Controller interface {
	SetAccess(ctx context.Context, mac string, allow bool) error
}

// Result reports how a grant or revoke was applied.
type Result string

const (
	ResultApplied         Result = "applied"
	ResultSkippedNoDevice Result = "skipped_no_device"
	ResultFailed          Result = "failed"
)

// NormalizeMAC validates mac and returns it in lower-case colon form.
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil {
		return "", fmt.Errorf("invalid mac address %q: %w", mac, err)
	}
	return strings.ToLower(hw.String()), nil
}

// LogController records access changes without touching a router. It is
// used when no router integration is configured.
type LogController struct {
	logger *slog.Logger
}

func NewLogController(logger *slog.Logger) *LogController {
	return &LogController{logger: logger}
}

func (c *LogController) SetAccess(ctx context.Context, mac string, allow bool) error {
	c.logger.Info("router integration disabled, access change not enforced", "mac", mac, "allow", allow)
	return nil
}
