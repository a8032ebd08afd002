package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hivefund/reconciler/src/app"
	"github.com/hivefund/reconciler/src/config"
	"github.com/hivefund/reconciler/src/handlers"
	"github.com/hivefund/reconciler/src/logger"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Reconciler server starting...")

	a, err := app.New(config.Cfg)
	if err != nil {
		logger.L.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if !a.Auth.Enabled() {
		logger.L.Warn("ADMIN_JWT_SECRET not set; admin endpoints disabled")
	}

	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 30)
	router := handlers.NewRouter(
		handlers.NewVerificationHandler(a.Service, a.LedgerProcessor, config.Cfg.BaseToleranceDays),
		handlers.NewReconciliationHandler(a.Service),
		a.Auth,
		limiter,
	)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * config.Cfg.SourceTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error("Graceful shutdown failed", "error", err)
	}
	logger.L.Info("Server stopped")
}
