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

	"github.com/joho/godotenv"

	"SignalDesk/internal/broker"
	"SignalDesk/internal/config"
	"SignalDesk/internal/executor"
	"SignalDesk/internal/ledger"
	"SignalDesk/internal/monitor"
	"SignalDesk/internal/rules"
	"SignalDesk/internal/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] SignalDesk starting...")

	// .env is optional; real deployments use the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init ledger
	var lg ledger.Ledger
	var persister rules.Persister
	if cfg.Database.SQLitePath != "" {
		sq, err := ledger.NewSQLiteLedger(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite ledger failed, using in-memory: %v", err)
			mem := ledger.NewMemoryLedger()
			lg, persister = mem, mem
		} else {
			lg, persister = sq, sq
			defer sq.Close()
		}
	} else {
		mem := ledger.NewMemoryLedger()
		lg, persister = mem, mem
	}

	// Init rule manager
	rm, err := rules.NewManager(persister)
	if err != nil {
		log.Fatalf("[FATAL] init rule manager: %v", err)
	}

	// Init brokerage adapter
	var adapter broker.Adapter
	if cfg.Brokerage.BaseURL != "" {
		adapter = broker.NewTradierAdapter(cfg.Brokerage.BaseURL, cfg.Brokerage.AccessToken, cfg.Brokerage.AccountID)
	} else {
		adapter = broker.NewPaperBroker(broker.NewYahooSpot())
	}
	log.Printf("[INFO] brokerage adapter: %s", adapter.Name())

	// Init executor
	policy := executor.FillPolicy{
		MaxAttempts:     cfg.Fill.MaxAttempts,
		PollInterval:    cfg.Fill.PollInterval,
		PollsPerAttempt: cfg.Fill.PollsPerAttempt,
	}
	exec := executor.New(adapter, lg, rm, policy)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init exit monitor
	if !cfg.Monitor.Disabled {
		mon := monitor.New(ctx, adapter, lg, rm)
		if err := mon.Register(cfg.Monitor.SweepCron); err != nil {
			log.Fatalf("[FATAL] register exit sweep: %v", err)
		}
		mon.Start()
		defer mon.Stop()
	}

	// Init HTTP server
	srv := server.New(cfg.Server.Addr, exec, lg, rm)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	log.Println("[INFO] SignalDesk is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	log.Println("[INFO] SignalDesk stopped")
}
