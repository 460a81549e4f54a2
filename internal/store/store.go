package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultDriver is the database/sql driver used when Options.Driver is empty.
const DefaultDriver = "sqlite3"

// driverSpec describes how to open one database/sql driver.
type driverSpec struct {
	// dsn builds the data source name for a database file.
	dsn func(path string) string
	// pragmas run once after opening, for drivers that cannot take them in
	// the DSN.
	pragmas []string
	// maxOpenConns overrides the pool size when non-zero.
	maxOpenConns int
}

// drivers holds the compiled-in drivers, keyed by database/sql name.
var drivers = map[string]driverSpec{}

// registerDriver is called from the driver_*.go init functions.
func registerDriver(name string, spec driverSpec) {
	drivers[name] = spec
}

// Drivers returns the names of the compiled-in drivers.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options configures Open.
type Options struct {
	// Driver selects the database/sql driver (default "sqlite3").
	Driver string

	// Logger for store warnings (default: stderr logger).
	Logger *log.Logger

	// SkipMigrations opens the database without upgrading the schema.
	SkipMigrations bool
}

// Store is the local replica database.
type Store struct {
	conn   *sql.DB
	path   string
	driver string
	logger *log.Logger

	observersMu  sync.RWMutex
	observers    map[int]*observer
	nextObserver int
}

// Open opens (creating if needed) the store at path with default options
// and migrates it to the latest schema version.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open("data/shelf.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens the store with custom options.
func OpenWithOptions(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	driver := opts.Driver
	if driver == "" {
		driver = DefaultDriver
	}
	spec, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, driver, Drivers())
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open(driver, spec.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxOpen := 25
	if spec.maxOpenConns > 0 {
		maxOpen = spec.maxOpenConns
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:      conn,
		path:      path,
		driver:    driver,
		logger:    logger,
		observers: make(map[int]*observer),
	}

	for _, pragma := range spec.pragmas {
		rows, err := s.conn.Query(pragma)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
		_ = rows.Close()
	}

	if !opts.SkipMigrations {
		if err := s.Migrate(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}
