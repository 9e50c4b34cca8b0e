package storage

import (
	"strings"

	"bot-mirror/src/helpers"
	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/utils"
)

var errNotInitialized = helpers.NewStorageError("store is not initialized", nil)

// -----------------------------------------------------------------------------

// NewKeyValueStore picks the backend named by storage.db_type. SQLite is the
// default.
func NewKeyValueStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IKeyValueStore, error) {
	switch strings.ToLower(cfg.Storage.DBType) {
	case "postgres":
		return NewPostgresDB(cfg, log)
	case "", "sqlite":
		return NewAsyncSQLiteDB(cfg, log)
	default:
		return nil, helpers.NewConfigurationError("unknown storage.db_type "+cfg.Storage.DBType, nil)
	}
}

// -----------------------------------------------------------------------------

func namespaceOf(cfg *models.MConfig) string {
	if cfg.Storage.Namespace != "" {
		return cfg.Storage.Namespace
	}
	return utils.DefaultParamsNamespace
}
