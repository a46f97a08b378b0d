// Package main initializes and starts the SealKeeper server, setting up
// configuration, logging, the backup repository, services, handlers, and
// optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/SealKeeper/internal/config"
	"github.com/atinyakov/SealKeeper/internal/db"
	"github.com/atinyakov/SealKeeper/internal/digest"
	"github.com/atinyakov/SealKeeper/internal/logger"
	"github.com/atinyakov/SealKeeper/internal/metrics"
	"github.com/atinyakov/SealKeeper/internal/ratelimit"
	"github.com/atinyakov/SealKeeper/internal/repository"
	"github.com/atinyakov/SealKeeper/internal/server/handler/http"
	"github.com/atinyakov/SealKeeper/internal/service"
	"github.com/atinyakov/SealKeeper/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()
	addr := options.Port

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alg, err := digest.ParseAlgorithm(options.Digest)
	if err != nil {
		zapLogger.Fatal("invalid digest algorithm", zap.Error(err))
	}
	d, err := digest.New(alg)
	if err != nil {
		zapLogger.Fatal("cannot init digest", zap.Error(err))
	}

	// Pick the backup repository: PostgreSQL when a DSN is set, the file otherwise.
	var backup store.BackupRepository
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()
		backup = repository.NewPostgresBackupRepository(postgresDB)
		zapLogger.Info("using postgres backup")
	} else {
		fileRepo := repository.NewFileBackupRepository(options.BackupPath)
		repository.StartTempSweeper(ctx, fileRepo.Path,
			time.Hour,   // interval
			time.Minute, // retention
			zapLogger,
		)
		backup = fileRepo
		zapLogger.Info("using file backup", zap.String("path", options.BackupPath))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	recordService := service.NewRecordService(backup, d, zapLogger, m)
	recordHandler := &http.RecordHandler{RecordService: recordService}

	// Build the router with middleware and routes.
	router := http.NewRouter(recordHandler, zapLogger, http.RouterOptions{
		Limiter:        ratelimit.New(options.RateLimit, options.RateBurst, 10*time.Minute),
		Metrics:        m.Handler(),
		AllowedOrigins: options.AllowedOrigins,
	})

	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if options.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
		if err != nil {
			zapLogger.Fatal("failed to load server TLS cert/key", zap.Error(err))
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("failed to shut down server", zap.Error(err))
		}
	}()

	if server.TLSConfig != nil {
		zapLogger.Info("starting HTTPS server", zap.String("addr", addr), zap.String("digest", alg.String()))
		err = server.ListenAndServeTLS("", "")
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", addr), zap.String("digest", alg.String()))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
