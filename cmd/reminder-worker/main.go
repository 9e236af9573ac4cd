package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/medical-appointments/internal/app"
	"github.com/hackgods/medical-appointments/internal/appointment"
	"github.com/hackgods/medical-appointments/internal/config"
	"github.com/hackgods/medical-appointments/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("info", "json", "reminder-worker")
		l.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, "reminder-worker")
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("lead", cfg.ReminderLead).
		Msg("reminder-worker starting up")

	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn().Msg("memory store has no shared appointments, the worker will find nothing to remind")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger, "reminder-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a.Service, cfg.ReminderLead, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Service, cfg.ReminderLead, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, lead time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := svc.DispatchReminders(runCtx, lead)
	if err != nil {
		logger.Error().Err(err).Msg("reminder run error")
		return
	}
	logger.Info().Int("sent", sent).Dur("took", time.Since(start)).Msg("reminder run complete")
}
