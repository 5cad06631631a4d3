package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klsinformatica/orcamento/internal/config"
	"github.com/klsinformatica/orcamento/internal/db"
	"github.com/klsinformatica/orcamento/internal/kv"
	"github.com/klsinformatica/orcamento/internal/logging"
	"github.com/klsinformatica/orcamento/internal/metrics"
	"github.com/klsinformatica/orcamento/internal/migrations"
	"github.com/klsinformatica/orcamento/internal/proposal/pdf"
	"github.com/klsinformatica/orcamento/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L.Fatalf("failed to load config: %v", err)
	}
	logging.Setup(cfg.AppEnv, cfg.LogLevel)
	if cfg.IsDev() {
		logging.L.Debug("running in development mode")
	}

	storage, closeStorage, err := openStorage(cfg)
	if err != nil {
		logging.L.Fatalf("failed to open storage: %v", err)
	}
	defer closeStorage()

	m := metrics.New()
	quotes := store.New(storage, store.WithLogger(logging.L), store.WithMetrics(m))
	items, client := quotes.Initialize()
	logging.L.WithFields(logging.Fields{
		"items":   len(items),
		"client":  client.Name,
		"storage": cfg.Storage,
	}).Info("quote restored")

	srv := newServer(quotes, pdf.New(logging.L), m, cfg.CompanyName, logging.L)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 2 * time.Second,
	}

	if err := run(httpServer, cfg.ShutdownTimeout); err != nil {
		logging.L.Fatalf("server stopped: %v", err)
	}
}

func openStorage(cfg config.Config) (kv.Storage, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logging.L.Warn("using in-memory storage, the quote is lost on restart")
		return kv.NewMemory(), func() {}, nil
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Up(database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("run database migrations: %w", err)
	}
	if version, err := migrations.Version(database); err == nil {
		logging.L.WithFields(logging.Fields{"path": cfg.DBPath, "schema_version": version}).Debug("database ready")
	}

	return kv.NewSQLite(database), func() { database.Close() }, nil
}

func run(httpServer *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logging.L.WithField("address", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-done:
		logging.L.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.L.Info("server stopped")
	return nil
}
