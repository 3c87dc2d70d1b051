package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every configuration surface the process needs.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Logging  LoggingConfig
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds the Postgres connection parameters backing the
// repository layer.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// EngineConfig holds the per-symbol grid parameters and operating
// tolerances used throughout the symbol engine.
type EngineConfig struct {
	Spread       float64
	LotSizes     []float64
	MaxPositions int
	TPPips       float64
	SLPips       float64
	Tolerance    float64
	HedgeEnabled bool
	HedgeLotSize float64

	MaxGroupsConcurrent int
	OrderTimeout        time.Duration
	MaxRetries          int
	RetryBackoff        time.Duration
}

// LoggingConfig controls the zap-backed logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load builds a Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "gridengine"),
			User:     getEnv("DB_USER", "gridengine"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Engine: EngineConfig{
			Spread:       getEnvAsFloat("ENGINE_SPREAD", 20.0),
			LotSizes:     getEnvAsFloatSlice("ENGINE_LOT_SIZES", []float64{0.01, 0.02, 0.03, 0.04, 0.05}),
			MaxPositions: getEnvAsInt("ENGINE_MAX_POSITIONS", 5),
			TPPips:       getEnvAsFloat("ENGINE_TP_PIPS", 20.0),
			SLPips:       getEnvAsFloat("ENGINE_SL_PIPS", 20.0),
			Tolerance:    getEnvAsFloat("ENGINE_TOLERANCE", 5.0),
			HedgeEnabled: getEnvAsBool("ENGINE_HEDGE_ENABLED", true),
			HedgeLotSize: getEnvAsFloat("ENGINE_HEDGE_LOT_SIZE", 0.01),

			MaxGroupsConcurrent: getEnvAsInt("ENGINE_MAX_GROUPS_CONCURRENT", 0),
			OrderTimeout:        getEnvAsDuration("ENGINE_ORDER_TIMEOUT", 5*time.Second),
			MaxRetries:          getEnvAsInt("ENGINE_MAX_RETRIES", 4),
			RetryBackoff:        getEnvAsDuration("ENGINE_RETRY_BACKOFF", 500*time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if len(cfg.Engine.LotSizes) == 0 {
		return nil, fmt.Errorf("ENGINE_LOT_SIZES must not be empty")
	}
	if cfg.Engine.Spread <= 0 {
		return nil, fmt.Errorf("ENGINE_SPREAD must be positive")
	}
	if cfg.Engine.MaxPositions <= 0 {
		return nil, fmt.Errorf("ENGINE_MAX_POSITIONS must be positive")
	}

	return cfg, nil
}

// OpenDatabase opens and pings a connection pool for the configured
// database, shared by every cmd/ entrypoint that needs one.
func OpenDatabase(cfg *Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatSlice(key string, defaultValue []float64) []float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
