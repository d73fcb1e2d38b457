package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"climate-server/internal/config"
	"climate-server/internal/db"
	"climate-server/internal/db/schema"
	"climate-server/internal/httpapi"
	"climate-server/internal/modules/climate"
	climateviews "climate-server/internal/modules/climate/views"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.SQLitePath,
		"maxOpenConns", cfg.MaxOpenConns,
		"maxIdleConns", cfg.MaxIdleConns,
		"connMaxLifetime", cfg.ConnMaxLifetime,
		"stationTable", cfg.Tables.Station,
		"measurementTable", cfg.Tables.Measurement,
	)

	gdb, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(gdb)
		if closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()
	logger.Info("database connection successful")

	mux, err := NewMux(ctx, cfg, logger, gdb)
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(cfg, logger, mux)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// NewMux validates the dataset against the record types and registers every
// route on a fresh mux. A schema mismatch is fatal.
func NewMux(ctx context.Context, cfg config.Config, logger *slog.Logger, gdb *gorm.DB) (*http.ServeMux, error) {
	descriptors, err := schema.Validate(ctx, gdb, climate.Tables(cfg.Tables)...)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	for _, d := range descriptors {
		if len(d.Extra) > 0 {
			logger.Warn("ignoring undeclared columns", "table", d.Table, "columns", d.Extra)
		}
		logger.Debug("table validated", "table", d.Table, "columns", d.Columns)
	}

	if err := climateviews.LoadTemplates(); err != nil {
		return nil, err
	}

	sessions := db.NewSessionProvider(gdb)
	mux := httpapi.NewMux(sessions)
	climate.RegisterFeature(mux, sessions, cfg, descriptors)
	return mux, nil
}
