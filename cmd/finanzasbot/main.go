package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Hxryknight/Finanzasbot/internal/config"
	apphttp "github.com/Hxryknight/Finanzasbot/internal/http"
	"github.com/Hxryknight/Finanzasbot/internal/ledger"
	gledger "github.com/Hxryknight/Finanzasbot/internal/ledger/google"
	mledger "github.com/Hxryknight/Finanzasbot/internal/ledger/memory"
	applog "github.com/Hxryknight/Finanzasbot/internal/log"
	"github.com/Hxryknight/Finanzasbot/internal/whatsapp"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("Unknown timezone, falling back to UTC", "tz", cfg.Timezone, "error", err)
		loc = time.UTC
	}

	var (
		appender ledger.Appender
		lister   ledger.Lister
	)
	switch cfg.Backend() {
	case "sheets":
		cli, err := gledger.New(context.Background(), gledger.Config{
			SpreadsheetID:      cfg.SheetID,
			ServiceAccountJSON: cfg.GoogleSAJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets ledger", "error", err)
			os.Exit(1)
		}
		appender, lister = cli, cli
		logger.Info("Initialized Google Sheets ledger", "sheet_id", cfg.SheetID)
	default:
		store := mledger.New()
		appender, lister = store, store
		logger.Info("Initialized in-memory ledger; rows are lost on restart")
	}

	if cfg.WhatsAppToken == "" || cfg.WhatsAppPhoneNumberID == "" {
		logger.Warn("WhatsApp credentials not set, replies will be dropped")
	}
	sender := whatsapp.New(cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID)

	webhook := apphttp.NewWebhookHandler(cfg.VerifyToken, appender, lister, sender, loc, logger.WithComponent("webhook"))
	srv := apphttp.NewServer(":"+cfg.Port, webhook)

	// Configure server timeouts and limits. The write timeout leaves room for
	// a sheet round-trip plus the 15s messaging call.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logger.Info("Starting finanzasbot server", "port", cfg.Port, "backend", cfg.Backend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
