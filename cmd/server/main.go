package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"ticketwave/internal/config"
	"ticketwave/internal/database"
	"ticketwave/internal/engine"
	"ticketwave/internal/event"
	"ticketwave/internal/gateway"
	"ticketwave/internal/handler"
	"ticketwave/internal/middleware"
	"ticketwave/internal/repository"
	"ticketwave/internal/router"
	"ticketwave/internal/store"
	"ticketwave/internal/worker"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	defer db.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	// Repositories and redis-backed stores.
	users := repository.NewUserRepo(db)
	shows := repository.NewShowRepo(db)
	schedules := repository.NewScheduleRepo(db)
	seats := repository.NewSeatRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	payments := repository.NewPaymentRepo(db)
	auditLog := repository.NewAdminLogRepo(db)
	ttlStore := store.NewTTL(rdb)
	queueStore := store.NewQueue(rdb)

	// Asynq shares the redis instance with the stores.
	redisOpt := asynq.RedisClientOpt{Addr: config.RedisAddr(), Password: config.RedisPassword()}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Engine services.
	gate := engine.NewGate(schedules)
	admission := engine.NewAdmission(queueStore, cfg.AdmissionCapacity, cfg.ReadyTTL)
	locks := engine.NewLockManager(ttlStore, seats, cfg.LockTTL)
	notifier := event.NewPublisher(cfg.AMQPURL)
	reservations := engine.NewReservations(gate, admission, locks, reservationRepo,
		schedules, shows, notifier, worker.TriggerSweep(asynqClient), cfg.PaymentTTL)
	gw := gateway.New(os.Getenv("GATEWAY_URL"))
	paymentSvc := engine.NewPayments(payments, reservations, gw,
		rate.NewLimiter(rate.Limit(cfg.GatewayRPS), cfg.GatewayRPS),
		cfg.GatewayAttempts, cfg.GatewayBackoff)
	gw.OnSettle(paymentSvc.HandleCallback)
	admin := engine.NewAdmin(shows, schedules, seats, reservations, reservationRepo,
		paymentSvc, admission, locks, auditLog)

	// Background workers: the sweep consumer plus the broker consumer that
	// writes booking logs and entry QR codes.
	sweeper := worker.NewSweeper(admission, locks, reservations, paymentSvc, schedules)
	workerSrv, err := worker.NewServer(redisOpt, sweeper, cfg.SweepCron)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	if err := workerSrv.Start(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer workerSrv.Shutdown()
	go event.StartConsumer(cfg.AMQPURL)

	// HTTP server.
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, users),
		Browse:       handler.NewBrowseHandler(shows, schedules, seats),
		Queue:        handler.NewQueueHandler(gate, admission),
		Seats:        handler.NewSeatHandler(gate, admission, locks),
		Reservations: handler.NewReservationHandler(reservations),
		Payments:     handler.NewPaymentHandler(paymentSvc, reservations),
		Admin:        handler.NewAdminHandler(admin),
	}, cfg.JWTSecret, rateLimit)

	go func() {
		addr := ":" + cfg.Port
		slog.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
}
