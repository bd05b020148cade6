package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/tmarceau/bidscope/internal/application"
	appjobs "github.com/tmarceau/bidscope/internal/application/jobs"
	"github.com/tmarceau/bidscope/internal/config"
	domanalysis "github.com/tmarceau/bidscope/internal/domain/analysis"
	domjobs "github.com/tmarceau/bidscope/internal/domain/jobs"
	rediscache "github.com/tmarceau/bidscope/internal/infra/cache"
	mysqlp "github.com/tmarceau/bidscope/internal/infra/db/mysql"
	postgresp "github.com/tmarceau/bidscope/internal/infra/db/postgres"
	"github.com/tmarceau/bidscope/internal/infra/httpserver"
	redisqueue "github.com/tmarceau/bidscope/internal/infra/queue"
	"github.com/tmarceau/bidscope/internal/middleware"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	db, jobRepo, analysisRepo, err := connectDatabase(ctx, cfg)
	if err != nil {
		logger.Error("database connect error", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rc.Close()

	jobsSvc := &appjobs.Service{
		Repo:   jobRepo,
		Cache:  rediscache.NewJobCache(rc),
		Clock:  application.SystemClock{},
		Logger: logger,
	}
	queue := redisqueue.New(rc, cfg.Worker.Queue)

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"redis":    &middleware.RedisHealthChecker{Client: rc},
	}

	var handler http.Handler = httpserver.NewRouter(jobsSvc, analysisRepo, queue, cfg.Worker.StagedDir, checkers, logger)
	handler = middleware.RateLimitMiddleware(60, 1)(handler)
	if len(cfg.Auth.APIKeys) > 0 {
		handler = middleware.APIKeyAuth(cfg.Auth.APIKeys)(handler)
	}
	handler = cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})(handler)
	handler = middleware.MetricsMiddleware(handler)
	handler = middleware.LoggingMiddleware(logger)(handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Minute, // large dossier uploads
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, domjobs.Repository, domanalysis.Repository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return db, postgresp.NewJobRepository(db), postgresp.NewAnalysisRepository(db), nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return db, mysqlp.NewJobRepository(db), mysqlp.NewAnalysisRepository(db), nil
	}
}
