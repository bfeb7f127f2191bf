package main

import (
	"fmt"
	"log/slog"

	"github.com/dukerupert/choregate/internal/config"
	"github.com/dukerupert/choregate/internal/database"
	"github.com/dukerupert/choregate/internal/email"
	"github.com/dukerupert/choregate/internal/logging"
	"github.com/dukerupert/choregate/internal/notify"
	"github.com/dukerupert/choregate/internal/server"
)

// app is handed to every command's Run method.
type app struct {
	cfg    *config.Config
	db     *database.DB
	logger *slog.Logger
}

func newApp(envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.Logging())

	db, err := database.Open(database.Dialect(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &app{cfg: cfg, db: db, logger: logger}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// server builds the full component graph, including the router integration
// and the optional email sender.
func (a *app) server() (*server.Server, error) {
	ctrl, err := server.NewController(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	var sender notify.Sender
	client := email.NewClient(a.cfg.PostmarkToken, a.cfg.EmailFrom, a.cfg.AppURL)
	if client.Configured() {
		sender = client
	} else {
		a.logger.Info("email delivery disabled, POSTMARK_TOKEN or EMAIL_FROM not set")
	}

	return server.New(a.db, a.cfg, ctrl, sender, a.logger)
}
