package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lead-enricher/internal/app"
	"lead-enricher/internal/common/camunda"
	"lead-enricher/internal/common/config"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/common/observability"
	"lead-enricher/internal/enrichment/sweeper"

	el "lead-enricher/internal/workers/enrichment/enrich-lead"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting enrichment worker...", zap.String("version", cfg.App.Version))

	obs := observability.New("enrichment-worker", log)
	defer obs.Shutdown()

	ctx := context.Background()

	deps, err := app.Connect(ctx, cfg, obs, log, app.Options{Attempts: 15, InitialDelay: 2 * time.Second})
	if err != nil {
		zapLog.Fatal("backing services unavailable", zap.Error(err))
	}
	defer deps.Close()

	orch, err := deps.Orchestrator(ctx)
	if err != nil {
		zapLog.Fatal("orchestrator setup failed", zap.Error(err))
	}

	var zeebe *camunda.Client
	err = app.RetryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.MessageTTL))
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	wcfg := config.GetWorkerConfig(cfg, el.TaskType)
	handler := el.NewHandler(el.LoadConfig(wcfg), orch, obs, log)
	jobWorker := camunda.StartWorker(zeebe.GetClient(), el.TaskType, wcfg, handler.Handle, log)

	var sched *sweeper.Scheduler
	if spec := cfg.Enrichment.SweepSchedule; spec != "" {
		sched = sweeper.NewScheduler(deps.Sweeper(), 0, log)
		if err := sched.Register(spec); err != nil {
			zapLog.Fatal("invalid sweep schedule", zap.Error(err))
		}
		sched.Start()
		zapLog.Info("Retention sweep scheduled", zap.String("schedule", spec))
	}

	// --- Health & Metrics Server ---
	var shuttingDown atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if shuttingDown.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "shutting_down")
			return
		}
		if err := deps.Postgres.Ping(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "database_unavailable")
			return
		}
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "zeebe_unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := cfg.Metrics.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping worker...")
	shuttingDown.Store(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if jobWorker != nil {
		jobWorker.Close()
		jobWorker.AwaitClose()
	}
	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Enrichment worker stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
