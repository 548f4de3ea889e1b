package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQL drivers registered with database/sql.
const (
	SQLDriverSQLite   = "sqlite3"
	SQLDriverPostgres = "pgx"
)

// Service represents the database service with connection management
type Service struct {
	DB     *sql.DB
	DSN    string
	Driver string
	log    zerolog.Logger
}

// Config holds database configuration
type Config struct {
	SQLDriver      string
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	AutoInitialize bool // Automatically initialize schema if DB doesn't exist
}

// DefaultConfig returns default database configuration
func DefaultConfig() *Config {
	return &Config{
		SQLDriver:      SQLDriverSQLite,
		DSN:            "./data/desintesa.db",
		MaxOpenConns:   1, // SQLite doesn't handle concurrent writes well
		MaxIdleConns:   1,
		AutoInitialize: true,
	}
}

// New creates a new database service instance
func New(config *Config, log zerolog.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SQLDriver == "" {
		config.SQLDriver = SQLDriverSQLite
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required for driver %s", config.SQLDriver)
	}

	service := &Service{
		DSN:    config.DSN,
		Driver: config.SQLDriver,
		log:    log.With().Str("component", "db").Str("sql_driver", config.SQLDriver).Logger(),
	}

	dbExists := true
	if config.SQLDriver == SQLDriverSQLite {
		dbExists = fileExists(config.DSN)

		// Ensure the directory exists
		dbDir := filepath.Dir(config.DSN)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database connection
	db, err := sql.Open(config.SQLDriver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(0)

	service.DB = db

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Postgres has no file to probe; the schema statements are idempotent.
	if (!dbExists || config.SQLDriver != SQLDriverSQLite) && config.AutoInitialize {
		service.log.Info().Msg("Initializing database schema...")
		if err := service.InitializeSchema(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		service.log.Info().Msg("Database schema initialized successfully")
	}

	service.log.Info().Msg("Database service initialized")
	return service, nil
}

// InitializeSchema loads and executes the schema.sql file
func (s *Service) InitializeSchema() error {
	// Read schema from embedded filesystem
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	for _, stmt := range strings.Split(string(schemaSQL), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	return nil
}

// VerifySchema checks if the database schema is properly initialized
func (s *Service) VerifySchema() error {
	requiredTables := []string{
		"order_snapshots",
	}

	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	if s.Driver == SQLDriverPostgres {
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?`
	}

	for _, table := range requiredTables {
		var exists int
		if err := s.DB.QueryRow(s.Rebind(query), table).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if exists == 0 {
			return fmt.Errorf("required table missing: %s", table)
		}
	}

	s.log.Debug().Msg("Schema verification successful - all required tables present")
	return nil
}

// Rebind converts ? placeholders into the driver's placeholder syntax.
func (s *Service) Rebind(query string) string {
	if s.Driver != SQLDriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection
func (s *Service) Close() error {
	if s.DB != nil {
		s.log.Info().Msg("Closing database connection...")
		return s.DB.Close()
	}
	return nil
}

// GetDB returns the underlying database connection
func (s *Service) GetDB() *sql.DB {
	return s.DB
}

// Transaction executes a function within a database transaction
func (s *Service) Transaction(fn func(*sql.Tx) error) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Health checks the database connection health
func (s *Service) Health() error {
	if s.DB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.DB.Ping()
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
