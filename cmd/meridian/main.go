package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-fin/meridian/internal/app"
	"github.com/meridian-fin/meridian/internal/assets"
	"github.com/meridian-fin/meridian/internal/expense"
	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/journals"
	"github.com/meridian-fin/meridian/internal/ledger/mappings"
	"github.com/meridian-fin/meridian/internal/observability"
	"github.com/meridian-fin/meridian/internal/payroll"
	"github.com/meridian-fin/meridian/internal/platform/cache"
	"github.com/meridian-fin/meridian/internal/platform/db"
	"github.com/meridian-fin/meridian/internal/sales"
	"github.com/meridian-fin/meridian/internal/shared"
	"github.com/meridian-fin/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, account cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	accountsRepo := accounts.NewRepository(pool)
	var accountsCache *accounts.Cache
	if redisClient != nil {
		accountsCache = accounts.NewCache(redisClient, cfg.CacheTTL)
	}
	accountsService := accounts.NewService(accountsRepo, accountsCache, logger)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	mappingsRepo := mappings.NewRepository(pool)
	mappingsHandler := mappings.NewHandler(logger, mappingsRepo)

	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(journalsRepo, auditLogger, metrics)
	journalsHandler := journals.NewHandler(logger, journalsService)

	expenseService := expense.NewService(expense.NewRepository(pool), journalsService, logger)
	expenseHandler := expense.NewHandler(logger, expenseService)

	payrollService := payroll.NewService(payroll.NewRepository(pool), journalsService, logger)
	payrollHandler := payroll.NewHandler(logger, payrollService)

	assetsService := assets.NewService(assets.NewRepository(pool), journalsService, logger)
	assetsHandler := assets.NewHandler(logger, assetsService)

	salesService := sales.NewService(sales.NewRepository(pool), journalsService, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accountsHandler,
		JournalsHandler: journalsHandler,
		MappingsHandler: mappingsHandler,
		ExpenseHandler:  expenseHandler,
		PayrollHandler:  payrollHandler,
		AssetsHandler:   assetsHandler,
		SalesHandler:    salesHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("meridian listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
