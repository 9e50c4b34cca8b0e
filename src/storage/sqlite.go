package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bot-mirror/src/helpers"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config    *models.MConfig
	DB        *sql.DB
	Logger    *logger.Logger
	namespace string
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, helpers.NewConfigurationError("storage.db_path is empty", nil)
	}
	if log == nil {
		log = logger.NewNop("SQLite")
	}
	return &AsyncSQLiteDB{
		Config:    cfg,
		Logger:    log,
		namespace: namespaceOf(cfg),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewStorageError("open sqlite "+dsn, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewStorageError("ping sqlite "+dsn, err)
	}

	// one writer; the kv table is tiny
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS kv_store (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create kv_store: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Get(key string) ([]byte, bool, error) {
	if d.DB == nil {
		return nil, false, errNotInitialized
	}

	var value []byte
	err := d.DB.QueryRow(
		"SELECT value FROM kv_store WHERE namespace = ? AND key = ?",
		d.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, helpers.NewStorageError("get "+key, err)
	}
	return value, true, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Put(key string, value []byte) error {
	if d.DB == nil {
		return errNotInitialized
	}

	_, err := d.DB.Exec(`
		INSERT INTO kv_store (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, d.namespace, key, value, time.Now().UTC().Unix())
	if err != nil {
		return helpers.NewStorageError("put "+key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Delete(key string) error {
	if d.DB == nil {
		return errNotInitialized
	}
	if _, err := d.DB.Exec("DELETE FROM kv_store WHERE namespace = ? AND key = ?", d.namespace, key); err != nil {
		return helpers.NewStorageError("delete "+key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
