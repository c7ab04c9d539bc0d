package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/golyo/golyo-calendar/internal/app"
	"github.com/golyo/golyo-calendar/internal/config"
	"github.com/golyo/golyo-calendar/internal/notify"
	"github.com/golyo/golyo-calendar/internal/occurrence"
	"github.com/golyo/golyo-calendar/internal/service"
	"github.com/golyo/golyo-calendar/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting calendar server",
		zap.String("environment", cfg.Environment),
		zap.String("trainer_id", cfg.TrainerID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrator.Close()

	events := postgres.NewEventStore(pool)
	members := postgres.NewMemberStore(pool)
	groups := postgres.NewGroupStore(pool)

	bus := notify.NewBus()
	clock := service.SystemClock()
	grace := time.Duration(cfg.GraceMinutes) * time.Minute
	generator := occurrence.New(clock.Now, grace)

	ledger := service.NewLedgerService(events, members, groups, clock, bus, logger)
	eventSrv := service.NewEventService(events, groups, ledger, generator, clock, bus, logger)

	if cfg.TelegramToken != "" {
		notifier, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.NotifyChatID, logger)
		if err != nil {
			logger.Fatal("Failed to create telegram notifier", zap.Error(err))
		}
		go notifier.Run(ctx, bus)

		reminder := app.NewReminder(eventSrv, notifier, cfg.TrainerID, logger)
		reminder.Start(ctx)
		defer reminder.Stop()
	} else {
		logger.Warn("TELEGRAM_TOKEN not set, notifications disabled")
	}

	<-ctx.Done()
	logger.Info("Shutting down")
}
