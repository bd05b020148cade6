package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/tmarceau/bidscope/internal/application"
	appanalysis "github.com/tmarceau/bidscope/internal/application/analysis"
	appjobs "github.com/tmarceau/bidscope/internal/application/jobs"
	"github.com/tmarceau/bidscope/internal/config"
	domanalysis "github.com/tmarceau/bidscope/internal/domain/analysis"
	domjobs "github.com/tmarceau/bidscope/internal/domain/jobs"
	"github.com/tmarceau/bidscope/internal/domain/joberrors"
	aiclient "github.com/tmarceau/bidscope/internal/infra/ai/openai"
	rediscache "github.com/tmarceau/bidscope/internal/infra/cache"
	mysqlp "github.com/tmarceau/bidscope/internal/infra/db/mysql"
	postgresp "github.com/tmarceau/bidscope/internal/infra/db/postgres"
	"github.com/tmarceau/bidscope/internal/infra/extract"
	redisqueue "github.com/tmarceau/bidscope/internal/infra/queue"
	minioStore "github.com/tmarceau/bidscope/internal/infra/storage"
	"github.com/tmarceau/bidscope/internal/worker"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, jobRepo, analysisRepo, failureRepo, err := connectDatabase(ctx, cfg)
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

	var reports domanalysis.ReportStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Error("minio init error", "error", err)
			os.Exit(1)
		}
		reports = store
	}

	jobsSvc := &appjobs.Service{
		Repo:   jobRepo,
		Cache:  rediscache.NewJobCache(rc),
		Clock:  application.SystemClock{},
		Logger: logger,
	}

	sequencer := &appanalysis.Sequencer{
		Completer:       aiclient.NewClient(cfg.LLM.APIKey, cfg.LLM.Model),
		Pacer:           appanalysis.NewTokenBucketPacer(cfg.Analysis.TokenBudgetPerMinute),
		Failures:        failureRepo,
		Logger:          logger,
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
		GeneralWindow:   cfg.Analysis.GeneralWindow,
		Retries:         uint(cfg.Analysis.GeneralRetries),
		Cooldown:        cfg.Cooldown(),
		BudgetPerMinute: cfg.Analysis.TokenBudgetPerMinute,
		FailurePause:    cfg.FailurePause(),
		RateLimitPause:  cfg.RateLimitPause(),
		ProgressStart:   10,
		ProgressEnd:     90,
	}

	processor := &appanalysis.Service{
		Jobs:      jobsSvc,
		Extractor: extract.New(),
		Planner: &appanalysis.Planner{
			Threshold:  cfg.Analysis.SingleCallThreshold,
			ExcerptCap: cfg.Analysis.LotExcerptCap,
			Detector:   appanalysis.NewKeywordDetector(),
		},
		Sequencer: sequencer,
		Repo:      analysisRepo,
		Reports:   reports,
		Clock:     application.SystemClock{},
		Logger:    logger,
	}

	queue := redisqueue.New(rc, cfg.Worker.Queue)
	w := worker.New(queue, processor, jobsSvc, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, domjobs.Repository, domanalysis.Repository, joberrors.Repository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return db, postgresp.NewJobRepository(db), postgresp.NewAnalysisRepository(db), postgresp.NewFailureRepository(db), nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return db, mysqlp.NewJobRepository(db), mysqlp.NewAnalysisRepository(db), mysqlp.NewFailureRepository(db), nil
	}
}
