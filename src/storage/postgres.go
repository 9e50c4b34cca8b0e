package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bot-mirror/src/helpers"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config    *models.MConfig
	DB        *sql.DB
	Schema    string
	Logger    *logger.Logger
	namespace string
}

// -----------------------------------------------------------------------------

// NewPostgresDB keeps its table in a schema named after the executable, so
// several tools can share one database.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, helpers.NewConfigurationError("storage.db_connection_string is empty", nil)
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if log == nil {
		log = logger.NewNop("Postgres")
	}

	return &PostgresDB{
		Config:    cfg,
		Schema:    name,
		Logger:    log,
		namespace: namespaceOf(cfg),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewStorageError("open postgres", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewStorageError("ping postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BYTEA NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (namespace, key)
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s: %w", d.table(), err)
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table() string {
	return fmt.Sprintf(`"%s"."kv_store"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Get(key string) ([]byte, bool, error) {
	if d.DB == nil {
		return nil, false, errNotInitialized
	}

	var value []byte
	query := fmt.Sprintf("SELECT value FROM %s WHERE namespace = $1 AND key = $2", d.table())
	err := d.DB.QueryRow(query, d.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, helpers.NewStorageError("get "+key, err)
	}
	return value, true, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Put(key string, value []byte) error {
	if d.DB == nil {
		return errNotInitialized
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`, d.table())
	if _, err := d.DB.Exec(query, d.namespace, key, value, time.Now().UTC()); err != nil {
		return helpers.NewStorageError("put "+key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Delete(key string) error {
	if d.DB == nil {
		return errNotInitialized
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE namespace = $1 AND key = $2", d.table())
	if _, err := d.DB.Exec(query, d.namespace, key); err != nil {
		return helpers.NewStorageError("delete "+key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
