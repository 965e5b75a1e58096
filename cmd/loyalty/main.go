// Package main запускает HTTP-сервер программы лояльности для барменов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/bartender-loyalty/internal/config"
	"github.com/mmeshcher/bartender-loyalty/internal/handler"
	"github.com/mmeshcher/bartender-loyalty/internal/middleware"
	"github.com/mmeshcher/bartender-loyalty/internal/payout"
	"github.com/mmeshcher/bartender-loyalty/internal/repository"
	"github.com/mmeshcher/bartender-loyalty/internal/repository/memory"
	"github.com/mmeshcher/bartender-loyalty/internal/service"
	"github.com/mmeshcher/bartender-loyalty/internal/withdrawal"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Warn("DATABASE_URI is not set, using in-memory storage; data will be lost on restart")
		repo = memory.New()
	}

	var payouts service.PayoutClient
	if cfg.PayoutSystemAddress != "" {
		payouts = payout.NewClient(cfg.PayoutSystemAddress)
	} else {
		sugar.Info("PAYOUT_SYSTEM_ADDRESS is not set, withdrawals are processed manually")
	}

	svc := service.NewService(repo, payouts, service.Options{
		EarningsRate: cfg.EarningsRate,
		Withdrawal: withdrawal.Policy{
			Min:            cfg.WithdrawalMin,
			Max:            cfg.WithdrawalMax,
			CommissionRate: cfg.CommissionRate,
		},
		OrderAutoConfirmAfter: cfg.OrderAutoConfirmAfter,
		JobInterval:           cfg.JobInterval,
	}, logger)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret, cfg.TokenTTL)
	h := handler.NewHandler(svc, logger, authMiddleware, cfg.CORSOrigins)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновые задачи: автоподтверждение заказов и отправка выплат
	g.Go(func() error {
		svc.RunBackgroundJobs(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting loyalty server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
