package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/choregate/internal/access"
	"github.com/dukerupert/choregate/internal/config"
)

// NewController returns the router integration selected by cfg.RouterMode.
func NewController(cfg *config.Config, logger *slog.Logger) (access.Controller, error) {
	logger = logger.With("component", "router")
	switch cfg.RouterMode {
	case config.RouterNone, "":
		return access.NewLogController(logger), nil
	case config.RouterSSH:
		return access.NewSSHController(access.SSHConfig{
			Addr:     cfg.RouterSSHAddr,
			User:     cfg.RouterSSHUser,
			Password: cfg.RouterSSHPassword,
			KeyFile:  cfg.RouterSSHKeyFile,
			HostKey:  cfg.RouterSSHHostKey,
			Timeout:  cfg.RouterTimeout,
		}, logger)
	case config.RouterHTTP:
		return access.NewHTTPController(access.HTTPConfig{
			BaseURL:  cfg.RouterURL,
			Username: cfg.RouterUsername,
			Password: cfg.RouterPassword,
		}, access.WithRouterHTTPClient(&http.Client{Timeout: cfg.RouterTimeout})), nil
	default:
		return nil, fmt.Errorf("unknown router mode %q", cfg.RouterMode)
	}
}
