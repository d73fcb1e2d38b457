package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPrecipitationCutoff = "2017-08-23"
	DefaultTobsStation         = "USC00519281"
	DefaultTobsCutoff          = "2017-08-23"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	Driver          string
	DSN             string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration

	Tables  Tables
	Queries Queries
}

// Tables holds the names of the two dataset tables.
type Tables struct {
	Station     string `yaml:"station"`
	Measurement string `yaml:"measurement"`
}

// Queries holds the fixed filter values baked into the precipitation and tobs endpoints.
type Queries struct {
	PrecipitationCutoff string `yaml:"precipitation_cutoff"`
	TobsStation         string `yaml:"tobs_station"`
	TobsCutoff          string `yaml:"tobs_cutoff"`
}

type fileConfig struct {
	Tables  Tables  `yaml:"tables"`
	Queries Queries `yaml:"queries"`
}

// LoadFromEnv reads .env (if present), then CONFIG_FILE (if set), then the
// process environment. Environment values win.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":7000"
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = "sqlite3"
	}
	switch driver {
	case "sqlite3", "sqlite", "postgres", "postgresql", "mysql", "mariadb", "sqlserver", "mssql":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, postgres, mysql, sqlserver)", driver)
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" && !isSQLite(driver) {
		return Config{}, fmt.Errorf("DB_DSN is required for DB_DRIVER %q", driver)
	}
	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if sqlitePath == "" {
		sqlitePath = "Resources/hawaii.sqlite"
	}

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationFromEnv("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}
	slowQuery, err := durationFromEnv("DB_SLOW_QUERY", "200ms")
	if err != nil {
		return Config{}, err
	}

	file := fileConfig{
		Tables: Tables{Station: "station", Measurement: "measurement"},
		Queries: Queries{
			PrecipitationCutoff: DefaultPrecipitationCutoff,
			TobsStation:         DefaultTobsStation,
			TobsCutoff:          DefaultTobsCutoff,
		},
	}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &file); err != nil {
			return Config{}, err
		}
	}

	tables := Tables{
		Station:     stringFromEnv("DB_STATION_TABLE", file.Tables.Station),
		Measurement: stringFromEnv("DB_MEASUREMENT_TABLE", file.Tables.Measurement),
	}
	if tables.Station == "" || tables.Measurement == "" {
		return Config{}, errors.New("table names must not be empty")
	}

	queries := Queries{
		PrecipitationCutoff: stringFromEnv("PRECIPITATION_CUTOFF", file.Queries.PrecipitationCutoff),
		TobsStation:         stringFromEnv("TOBS_STATION", file.Queries.TobsStation),
		TobsCutoff:          stringFromEnv("TOBS_CUTOFF", file.Queries.TobsCutoff),
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        httpAddr,
		Driver:          driver,
		DSN:             dsn,
		SQLitePath:      sqlitePath,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		SlowQuery:       slowQuery,
		Tables:          tables,
		Queries:         queries,
	}, nil
}

// IsSQLite reports whether the configured driver is sqlite.
func (c Config) IsSQLite() bool {
	return isSQLite(c.Driver)
}

func isSQLite(driver string) bool {
	return driver == "sqlite3" || driver == "sqlite"
}

func loadFile(path string, out *fileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("CONFIG_FILE %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("CONFIG_FILE %q: decode yaml: %w", path, err)
	}
	return nil
}

func stringFromEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func durationFromEnv(key, fallback string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
