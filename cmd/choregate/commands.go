package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/choregate/internal/seed"
	"github.com/dukerupert/choregate/internal/store"
)

type ServeCmd struct {
	ShutdownTimeout time.Duration `help:"Grace period for in-flight requests on shutdown." default:"10s"`
}

func (c *ServeCmd) Run(a *app) error {
	srv, err := a.server()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:         a.cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("choregate listening", "addr", a.cfg.Addr, "router_mode", a.cfg.RouterMode, "timezone", a.cfg.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		srv.Scheduler().Start(ctx)
		<-ctx.Done()
		srv.Scheduler().Stop()
		return nil
	})
	g.Go(func() error {
		return srv.RateLimiter().Run(ctx, time.Minute)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type SweepCmd struct {
	Name string `arg:"" enum:"reminders,overdue,recurrence" help:"Sweep to run: reminders, overdue or recurrence."`
}

func (c *SweepCmd) Run(a *app) error {
	srv, err := a.server()
	if err != nil {
		return err
	}
	res, err := srv.Scheduler().RunNow(context.Background(), c.Name)
	if err != nil {
		return err
	}
	fmt.Printf("%s: examined %d, acted on %d\n", c.Name, res.Examined, res.Acted)
	if res.Errors != nil {
		return res.Errors
	}
	return nil
}

type SeedCmd struct {
	File *os.File `help:"Household YAML file." required:"" short:"f"`
}

func (c *SeedCmd) Run(a *app) error {
	defer c.File.Close()
	h, err := seed.Parse(c.File)
	if err != nil {
		return err
	}
	report, err := seed.Apply(context.Background(), store.NewUserStore(a.db), h)
	if err != nil {
		return err
	}
	a.logger.Info("household seeded", "file", c.File.Name(), "created", report.Created, "updated", report.Updated)
	return nil
}
