package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/Nixie-Tech-LLC/platter/internal/backup"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api/admin/control/endpoints"
	"github.com/Nixie-Tech-LLC/platter/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/platter/internal/scheduler"
)

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.ServerAddress = addr
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, closeNotifier := initNotifier(cfg)
	defer closeNotifier()

	var nudger endpoints.Nudger
	var handle *scheduler.Handle
	if cfg.Settings.Scheduling.Enabled {
		sched := scheduler.New(store,
			scheduler.WithIdleInterval(cfg.Settings.Scheduling.IdleInterval),
			scheduler.WithPublisher(publisher),
		)
		handle = sched.Start(ctx)
		nudger = sched
	} else {
		log.Warn().Msg("Scheduling is disabled, schedules will not be executed")
	}

	backups := cron.New()
	if cfg.Settings.Backup.Interval > 0 {
		dst, err := initBackupStorage(cfg)
		if err != nil {
			return err
		}
		if _, err := backup.Schedule(backups, cfg.Settings.Backup.Interval, store, dst); err != nil {
			return err
		}
	}
	backups.Start()
	defer backups.Stop()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	RegisterRoutes(r, cfg, store, nudger)

	srv := &http.Server{Addr: cfg.ServerAddress, Handler: r}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("systemd notify failed")
	} else if ok {
		log.Debug().Msg("notified systemd of readiness")
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	log.Info().Msg("shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if handle != nil {
		handle.Stop()
	}
	return err
}
