// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Ranidpz/qrinfo-sub000/candidates"
	"github.com/Ranidpz/qrinfo-sub000/cliparse"
	"github.com/Ranidpz/qrinfo-sub000/db"
	"github.com/Ranidpz/qrinfo-sub000/ledger"
	"github.com/Ranidpz/qrinfo-sub000/livesync"
	"github.com/Ranidpz/qrinfo-sub000/metrics"
	"github.com/Ranidpz/qrinfo-sub000/phase"
	"github.com/Ranidpz/qrinfo-sub000/router"
	"github.com/Ranidpz/qrinfo-sub000/verify"
)

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env")
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to the database (postgres in production, sqlite for dev)
	dbConn, err := sql.Open(cfg.DriverName(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Verify connection
	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready")

	// Wire components
	registry := prometheus.NewRegistry()
	metricService := metrics.NewService(registry)
	hub := livesync.NewHub(metricService)
	store := candidates.NewStore(dbConn)
	ctrl := phase.NewController(dbConn, store, hub, metricService)
	lg := ledger.NewLedger(dbConn, cfg.SessionSecret, hub, metricService)

	var sender verify.Sender = verify.LogSender{}
	if cfg.OTPGatewayURL != "" {
		sender = verify.NewGatewaySender(cfg.OTPGatewayURL)
	} else {
		slog.Warn("no OTP gateway configured, codes will be logged")
	}
	gate := verify.NewGate(dbConn, cfg.SessionSecret, cfg.OTPSalt, sender, metricService)

	// Background phase scheduler
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go phase.NewScheduler(dbConn, ctrl, phase.DefaultPollInterval).Run(schedCtx)

	// Create router
	mux := router.NewRouter(router.Deps{
		DB:       dbConn,
		Cfg:      cfg,
		Store:    store,
		Ledger:   lg,
		Ctrl:     ctrl,
		Gate:     gate,
		Hub:      hub,
		Registry: registry,
	})

	// Create server
	server := http.Server{
		Handler: mux,
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		stopScheduler()
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
