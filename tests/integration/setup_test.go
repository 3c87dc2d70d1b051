// Package integration contains integration tests for the grid trading
// engine:
// - API integration tests: full HTTP request cycle through the control surface
// - Database tests: repository round-trips against a real Postgres instance
//
// These files carry no build tag, so they run with the unit tests; the
// database-backed tests skip themselves when no Postgres is reachable.
// Run with: go test ./tests/integration/...
package integration

import (
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"gridengine/internal/api"
	"gridengine/internal/broker"
	"gridengine/internal/config"
	"gridengine/internal/engine"
	"gridengine/internal/grouplog"
	"gridengine/internal/orchestrator"
	"gridengine/internal/repository"
	"gridengine/pkg/utils"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

// TestConfig holds the Postgres connection parameters for integration
// tests, distinct from the production config so a stray test run never
// points at a live database.
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer bundles everything needed to drive the control surface
// end-to-end against a real database.
type TestServer struct {
	DB      *sql.DB
	Router  *mux.Router
	Server  *httptest.Server
	Hub     *grouplog.Hub
	Orch    *orchestrator.Orchestrator
	Repos   engine.Repositories
	Cleanup func()
}

func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "gridengine_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB opens a connection to the test database, skipping the
// calling test (not failing it) when no database is reachable, since
// these tests require a real Postgres instance that isn't always
// available in every environment.
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	cfg := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := sql.Open(cfg.DBDriver, connStr)
	if err != nil {
		t.Skipf("skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer wires a full control surface backed by a real
// database and a fake broker adapter.
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		t.Skipf("skipping integration test: cannot initialize tables: %v", err)
		return nil
	}

	hub := grouplog.NewHub()
	go hub.Run()

	logger := utils.InitLogger(utils.LogConfig{Level: "error"})
	history := grouplog.NewHistoryWriter(grouplog.NewHubWriter(hub, logger))

	repos := engine.Repositories{
		State:  repository.NewStateRepository(db),
		Pair:   repository.NewPairRepository(db),
		Ticket: repository.NewTicketRepository(db),
		Trade:  repository.NewTradeRepository(db),
	}

	cfg := config.EngineConfig{
		Spread: 20.0, LotSizes: []float64{0.01}, MaxPositions: 5, TPPips: 20.0, SLPips: 20.0,
	}
	fake := broker.NewFake()
	orch := orchestrator.New(cfg, fake, orchestrator.StaticRepositoryFactory{Repos: repos}, history, logger)

	router := api.SetupRoutes(&api.Dependencies{
		Orchestrator: orch,
		History:      history,
		Hub:          hub,
		Logger:       logger,
	})

	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:      db,
		Router:  router,
		Server:  server,
		Hub:     hub,
		Orch:    orch,
		Repos:   repos,
		Cleanup: cleanup,
	}
}

// initTestTables creates the four persistence tables the repository
// layer expects, matching the column set each repository reads and
// writes.
func initTestTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS symbol_state (
			symbol VARCHAR(20) PRIMARY KEY,
			phase VARCHAR(20) NOT NULL,
			center_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			iteration INT NOT NULL DEFAULT 0,
			current_group INT NOT NULL DEFAULT 0,
			anchor_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_update_time TIMESTAMP NOT NULL DEFAULT NOW(),
			metadata_json JSONB DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS grid_pairs (
			symbol VARCHAR(20) NOT NULL,
			pair_index INT NOT NULL,
			buy_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			sell_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			buy_ticket BIGINT NOT NULL DEFAULT 0,
			sell_ticket BIGINT NOT NULL DEFAULT 0,
			buy_filled BOOLEAN NOT NULL DEFAULT false,
			sell_filled BOOLEAN NOT NULL DEFAULT false,
			trade_count INT NOT NULL DEFAULT 0,
			next_action VARCHAR(20) NOT NULL DEFAULT '',
			locked_buy_entry DOUBLE PRECISION NOT NULL DEFAULT 0,
			locked_sell_entry DOUBLE PRECISION NOT NULL DEFAULT 0,
			tp_blocked BOOLEAN NOT NULL DEFAULT false,
			group_id INT NOT NULL DEFAULT 0,
			hedge_ticket BIGINT NOT NULL DEFAULT 0,
			hedge_active BOOLEAN NOT NULL DEFAULT false,
			hedge_direction INT NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, pair_index)
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_map (
			ticket BIGINT PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			pair_index INT NOT NULL,
			leg INT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			tp_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			sl_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			tp_touched BOOLEAN NOT NULL DEFAULT false,
			sl_touched BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS trade_history (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			ts TIMESTAMP NOT NULL DEFAULT NOW(),
			event_type VARCHAR(20) NOT NULL,
			pair_index INT,
			direction INT NOT NULL DEFAULT 0,
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			lot DOUBLE PRECISION NOT NULL DEFAULT 0,
			ticket BIGINT NOT NULL DEFAULT 0,
			notes TEXT DEFAULT ''
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	return nil
}

func cleanupTestTables(db *sql.DB) {
	for _, table := range []string{"trade_history", "ticket_map", "grid_pairs", "symbol_state"} {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// TruncateTable truncates a specific table for testing.
func TruncateTable(db *sql.DB, tableName string) error {
	_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tableName))
	return err
}
