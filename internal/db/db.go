package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"

	"climate-server/internal/config"
)

// Open builds the process-wide pool for cfg.Driver. The dataset is only
// read, so sqlite connections are opened query-only.
func Open(cfg config.Config, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialector, err := newDialector(cfg, logger)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(logger, cfg.SlowQuery, !cfg.IsSQLite()),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db pool: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return gdb, nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newDialector(cfg config.Config, logger *slog.Logger) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite3", "sqlite":
		dsn, err := buildSQLiteDSN(cfg)
		if err != nil {
			return nil, err
		}
		connector, err := NewLoggingConnector(dsn, logger)
		if err != nil {
			return nil, err
		}
		return &sqlite.Dialector{Conn: sql.OpenDB(connector)}, nil
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "mysql", "mariadb":
		return mysql.Open(cfg.DSN), nil
	case "sqlserver", "mssql":
		return sqlserver.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

func buildSQLiteDSN(cfg config.Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	params := []string{
		"_busy_timeout=5000",
		"_query_only=1",
	}

	path := cfg.SQLitePath
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	// sqlite would silently create an empty file; the dataset must already exist.
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("sqlite database %s: %w", path, err)
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
