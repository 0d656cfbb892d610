package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite3"
)

// Config holds database connection configuration
type Config struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	Path            string // sqlite3 only
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds the driver-specific connection string.
func (c *Config) DSN() (string, error) {
	switch c.Driver {
	case DriverPostgres, DriverPGX:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host,
			c.Port,
			c.User,
			c.Password,
			c.Database,
			c.SSLMode,
		), nil
	case DriverSQLite:
		if c.Path == "" {
			return "", fmt.Errorf("sqlite3 driver requires a database path")
		}
		return c.Path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// DB wraps sqlx.DB with monitoring and metrics. It is safe for concurrent use;
// callers that need a dedicated connection take a Session.
type DB struct {
	executor
	db     *sqlx.DB
	config *Config

	stopMonitor chan struct{}
	closeOnce   sync.Once
}

// Open creates a new database connection pool and verifies it with a ping.
func Open(cfg *Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(context.Background(), "[DB_INIT] Database connection established", logging.Fields{
		"driver":            cfg.Driver,
		"host":              cfg.Host,
		"database":          cfg.Database,
		"path":              cfg.Path,
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	d := &DB{
		executor: executor{
			runner:  db,
			driver:  cfg.Driver,
			logger:  logger,
			metrics: metricsCollector,
			begin: func(ctx context.Context) (*sqlx.Tx, error) {
				return db.BeginTxx(ctx, nil)
			},
		},
		db:          db,
		config:      cfg,
		stopMonitor: make(chan struct{}),
	}

	go d.monitorConnectionPool()

	return d, nil
}

// Close stops pool monitoring and closes the database connection
func (d *DB) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.stopMonitor)
		d.logger.Info(context.Background(), "[DB_CLOSE] Closing database connection", logging.Fields{
			"driver":   d.config.Driver,
			"database": d.config.Database,
		})
		err = d.db.Close()
	})
	return err
}

// DB returns the underlying sqlx.DB instance
func (d *DB) DB() *sqlx.DB {
	return d.db
}

// Session acquires a dedicated connection from the pool. The caller must Close it.
func (d *DB) Session(ctx context.Context) (*Session, error) {
	conn, err := d.db.Connx(ctx)
	if err != nil {
		d.metrics.RecordDBError("session_error")
		return nil, fmt.Errorf("failed to acquire database session: %w", err)
	}

	return &Session{
		executor: executor{
			runner:  conn,
			driver:  d.driver,
			logger:  d.logger,
			metrics: d.metrics,
			begin: func(ctx context.Context) (*sqlx.Tx, error) {
				return conn.BeginTxx(ctx, nil)
			},
		},
		conn: conn,
	}, nil
}

// WithSession runs fn on a dedicated connection and always releases it.
func (d *DB) WithSession(ctx context.Context, fn func(s *Session) error) error {
	s, err := d.Session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}

// monitorConnectionPool periodically updates connection pool metrics
func (d *DB) monitorConnectionPool() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopMonitor:
			return
		case <-ticker.C:
		}

		stats := d.db.Stats()

		d.metrics.UpdateDBConnectionPool(
			stats.InUse,
			stats.Idle,
			stats.OpenConnections,
		)

		if d.config.MaxOpenConns <= 0 {
			continue
		}

		// Log warning if connection pool is near capacity
		utilization := float64(stats.InUse) / float64(d.config.MaxOpenConns)
		if utilization > 0.8 {
			d.logger.Warn(context.Background(), "[DB_POOL_WARNING] Connection pool utilization high", logging.Fields{
				"in_use":      stats.InUse,
				"idle":        stats.Idle,
				"total":       stats.OpenConnections,
				"max_open":    d.config.MaxOpenConns,
				"utilization": fmt.Sprintf("%.2f%%", utilization*100),
			})
		}
	}
}

// HealthCheck performs a database health check
func (d *DB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Session is a single pooled connection owned by one unit of work, such as a
// scheduled job run. It is not safe for concurrent use.
type Session struct {
	executor
	conn *sqlx.Conn
}

// Close returns the connection to the pool
func (s *Session) Close() error {
	if err := s.conn.Close(); err != nil && err != sql.ErrConnDone {
		return err
	}
	return nil
}
