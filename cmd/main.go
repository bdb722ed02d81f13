package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/data"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/data/cache"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/data/repository"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/data/session"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/externalApi/priceApi"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/reportGenerator/xlsxGenerator"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/scheduler"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/service/walletService"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/tgbot"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := repository.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	priceApiClient := priceApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	googleCloudStorage := googleDriveApi.New(ctx, cfg)

	walletSrv := walletService.New(pgRepo, redisCache, priceApiClient, reportGenerator, googleCloudStorage, cfg)

	sched := scheduler.New()
	sched.NewIntervalJob("refresh quotes", walletSrv.RefreshQuotes, cfg.Jobs.RefreshQuotesInterval, true)
	sched.NewCrontabJob("clean up old report files", googleCloudStorage.DeleteOldFiles, "0 3 * * *", false)
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(cfg, walletSrv, redisSession)

	tgBot := tgbot.New(cfg, tgController, redisSession)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
