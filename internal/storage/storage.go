// Package storage persists recon run history in PostgreSQL. It is an
// optional layer: nothing in the engine depends on it, and the CLI and
// API only touch it when storage is enabled in the configuration.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/logging"
)

const (
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute

	// DefaultListLimit bounds history listings when the caller does not
	// ask for a specific page size.
	DefaultListLimit = 50
)

// Config holds database configuration.
type Config struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// DefaultConfig returns the default database configuration. Database
// name, username, and password must be explicitly configured.
func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		Host:            "localhost",
		Port:            defaultPostgresPort,
		Database:        "",
		Username:        "",
		Password:        "",
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
	}
}

// ScanRecord is one persisted recon run. Payload holds the module's
// JSON envelope so saved runs round-trip through the reporting layer.
type ScanRecord struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Kind       string          `db:"kind" json:"kind"`
	Target     string          `db:"target" json:"target"`
	ResolvedIP string          `db:"resolved_ip" json:"resolved_ip"`
	OpenPorts  int             `db:"open_ports" json:"open_ports"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Record kinds.
const (
	KindPortScan   = "port_scan"
	KindDNSLookup  = "dns_lookup"
	KindBannerGrab = "banner_grab"
)

// NewScanRecord builds a record for a recon run. payload must be the
// module's JSON envelope.
func NewScanRecord(kind, target, resolvedIP string, openPorts int, payload any) (*ScanRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WrapStorageError(errors.CodeStorageQuery,
			"failed to encode scan payload", "save_scan", err)
	}
	return &ScanRecord{
		ID:         uuid.New(),
		Kind:       kind,
		Target:     target,
		ResolvedIP: resolvedIP,
		OpenPorts:  openPorts,
		Payload:    data,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Store provides scan history persistence.
type Store struct {
	db *sqlx.DB
}

// Connect establishes a PostgreSQL connection and ensures the history
// schema exists.
func Connect(ctx context.Context, cfg *Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database,
		cfg.Username, cfg.Password, cfg.SSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		// Sanitized error, the DSN carries credentials.
		return nil, errors.WrapStorageError(errors.CodeStorageConnection,
			"failed to connect to database", "connect", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Info("Connected to scan history database",
		"host", cfg.Host, "port", cfg.Port, "database", cfg.Database)
	return store, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests.
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.WrapStorageError(errors.CodeStorageConnection,
			"database ping failed", "ping", err)
	}
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS scan_history (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			target TEXT NOT NULL,
			resolved_ip TEXT NOT NULL DEFAULT '',
			open_ports INTEGER NOT NULL DEFAULT 0,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_scan_history_target
			ON scan_history (target, created_at DESC);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.WrapStorageError(errors.CodeStorageQuery,
			"failed to create history schema", "ensure_schema", err)
	}
	return nil
}

// SaveScan persists one recon run.
func (s *Store) SaveScan(ctx context.Context, rec *ScanRecord) error {
	query := `
		INSERT INTO scan_history (id, kind, target, resolved_ip, open_ports, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Kind, rec.Target, rec.ResolvedIP,
		rec.OpenPorts, rec.Payload, rec.CreatedAt)
	if err != nil {
		return errors.WrapStorageError(errors.CodeStorageQuery,
			"failed to save scan record", "save_scan", err)
	}
	return nil
}

// ListScans returns the most recent runs, newest first.
func (s *Store) ListScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, kind, target, resolved_ip, open_ports, payload, created_at
		FROM scan_history
		ORDER BY created_at DESC
		LIMIT $1`

	var records []ScanRecord
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, errors.WrapStorageError(errors.CodeStorageQuery,
			"failed to list scan records", "list_scans", err)
	}
	return records, nil
}

// GetScan returns one run by ID.
func (s *Store) GetScan(ctx context.Context, id uuid.UUID) (*ScanRecord, error) {
	query := `
		SELECT id, kind, target, resolved_ip, open_ports, payload, created_at
		FROM scan_history
		WHERE id = $1`

	var rec ScanRecord
	if err := s.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.WrapStorageError(errors.CodeStorageQuery,
				"scan record not found", "get_scan", err)
		}
		return nil, errors.WrapStorageError(errors.CodeStorageQuery,
			"failed to load scan record", "get_scan", err)
	}
	return &rec, nil
}
