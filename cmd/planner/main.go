package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habit-tracker/internal/auth"
	"habit-tracker/internal/bot"
	"habit-tracker/internal/config"
	"habit-tracker/internal/events"
	"habit-tracker/internal/httpapi"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	var locker service.Locker = service.NewLocalLocker()
	if rdb := config.NewRedisClient(cfg); rdb != nil {
		defer rdb.Close()
		locker = service.NewRedisLocker(rdb, 30*time.Second)
		log.Printf("[info] materialization locks in redis at %s", cfg.RedisAddr)
	}
	publisher := events.New(cfg.AMQPURL)

	userRepo := repository.NewUserRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	patternRepo := repository.NewRecurrenceRepository(db)

	materializer := service.NewMaterializer(instanceRepo, locker)
	refresher := service.NewRefreshCoordinator(patternRepo, materializer, cfg.RefreshConcurrency)
	deleter := service.NewCascadingDeleter(patternRepo, publisher)
	detector := service.NewOrphanDetector(instanceRepo, patternRepo)
	todoSvc := service.NewTodoService(instanceRepo, patternRepo, materializer, refresher, deleter, cfg.RefreshAheadDays)
	statsSvc := service.NewStatsService(todoSvc)
	reminderSvc := service.NewReminderService(todoSvc)
	maintenance := service.NewMaintenance(userRepo, refresher, detector, publisher, cfg.RefreshAheadDays)

	scheduler := service.NewSchedulerService(time.Local, 5*time.Minute)
	if _, err := scheduler.ScheduleInterval("refresh upcoming", cfg.RefreshInterval, maintenance.RefreshUpcoming); err != nil {
		log.Fatalf("schedule refresh: %v", err)
	}
	if _, err := scheduler.ScheduleDaily("orphan scan", cfg.OrphanScanTime, maintenance.ScanOrphans); err != nil {
		log.Fatalf("schedule orphan scan: %v", err)
	}

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		api := &httpapi.API{
			Todos:   todoSvc,
			Stats:   statsSvc,
			Orphans: detector,
			Users:   userRepo,
			Auth:    auth.NewManager(cfg.JWTSecret),
			Horizon: cfg.NavHorizonMonths,
		}
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("[info] http api listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("server error: %v", err)
			}
		}()
	}

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, userRepo, todoSvc, detector, reminderSvc, cfg)
		if err != nil {
			log.Fatalf("bot: %v", err)
		}
		if _, err := scheduler.ScheduleDaily("daily summary", cfg.SummaryTime, telegramBot.SendDailyReports); err != nil {
			log.Fatalf("schedule reports: %v", err)
		}
	}

	scheduler.Start()
	defer scheduler.Stop()

	// Bring the ahead window up to date instead of waiting for the first tick.
	go func() {
		if err := maintenance.RefreshUpcoming(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[warn] startup refresh: %v", err)
		}
	}()

	log.Println("[info] habit tracker started")
	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[warn] bot stopped with error: %v", err)
		}
	} else {
		<-ctx.Done()
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[warn] server shutdown error: %v", err)
		}
	}
	log.Println("[info] shutdown complete")
}
