package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/app"
	"github.com/noah-isme/backend-pressing/internal/config"
	"github.com/noah-isme/backend-pressing/internal/events"
	"github.com/noah-isme/backend-pressing/internal/handoff"
	"github.com/noah-isme/backend-pressing/internal/obs"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.ServiceName).With().
		Str("env", cfg.AppEnv).
		Str("component", "worker").
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the API owns the schema
	cfg.RunMigrations = false
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := app.New(startCtx, cfg, logger, "worker")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	redisOpt, err := deps.AsynqRedis()
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis options")
	}

	handler := &handoff.Handler{
		Events: &events.Bus{Store: deps.EventStore()},
		Logger: logger.With().Str("module", "handoff").Logger(),
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.HandoffConcurrency,
		Queues:          map[string]int{cfg.HandoffQueue: 1},
		ShutdownTimeout: 20 * time.Second,
		Logger:          asynqLogger{logger: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task_type", task.Type()).Msg("handoff_task_failed")
		}),
	})

	if err := srv.Start(handoff.NewServeMux(handler)); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Str("queue", cfg.HandoffQueue).Int("concurrency", cfg.HandoffConcurrency).Msg("worker starting")

	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
