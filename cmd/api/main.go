package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ivr-platform/internal/benefits"
	"ivr-platform/internal/billing"
	"ivr-platform/internal/config"
	"ivr-platform/internal/customer"
	"ivr-platform/internal/ivr"
	"ivr-platform/internal/records"
	"ivr-platform/internal/session"
	"ivr-platform/pkg/logger"
	"ivr-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local env file is optional; real deployments set env directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	machine := ivr.NewMachine(
		session.NewRedisStore(rdb, cfg.Session.TTL),
		customer.NewPostgresDirectory(db, cfg.Session.SubscriptionMonths),
		records.NewPostgresRepo(db),
		billing.NewClient(billing.ClientConfig{
			APIURL:    cfg.Billing.APIURL,
			CompanyID: cfg.Billing.CompanyID,
			User:      cfg.Billing.User,
			Password:  cfg.Billing.Password,
			Timeout:   cfg.Billing.RequestTimeout,
		}),
		benefits.NewCalculator(cfg.Benefits.WorkBenefitBase, cfg.Benefits.BirthBenefitPerChild),
		log,
		cfg.Session.SubscriptionMonths,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, db, machine)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
