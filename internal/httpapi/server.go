package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"climate-server/internal/config"
)

func NewServer(cfg config.Config, logger *slog.Logger, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
