package storage

import (
	"encoding/json"
	"sync"
	"time"

	"bot-mirror/src/helpers"
	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/utils"
)

// -----------------------------------------------------------------------------
// ParamsRepository keeps the user's strategy parameters under one namespaced
// key. It knows nothing about the network.
// -----------------------------------------------------------------------------

type ParamsRepository struct {
	kv     interfaces.IKeyValueStore
	key    string
	logger *logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current models.MSavedParams
}

// -----------------------------------------------------------------------------

func NewParamsRepository(kv interfaces.IKeyValueStore, namespace string, log *logger.Logger) *ParamsRepository {
	if namespace == "" {
		namespace = utils.DefaultParamsNamespace
	}
	if log == nil {
		log = logger.NewNop("Params")
	}
	return &ParamsRepository{
		kv:      kv,
		key:     namespace + ":strategy_params",
		logger:  log,
		now:     time.Now,
		current: models.DefaultSavedParams(),
	}
}

// -----------------------------------------------------------------------------

func (r *ParamsRepository) Key() string {
	return r.key
}

// -----------------------------------------------------------------------------

// Load reads the saved record once. A missing or unreadable record yields the
// defaults; only a backend failure is an error.
func (r *ParamsRepository) Load() (models.MSavedParams, error) {
	raw, ok, err := r.kv.Get(r.key)
	if err != nil {
		return models.DefaultSavedParams(), err
	}

	saved := models.DefaultSavedParams()
	if ok {
		if err := json.Unmarshal(raw, &saved); err != nil {
			r.logger.Warning("Ignoring unreadable %s: %v", r.key, err)
			saved = models.DefaultSavedParams()
		} else if saved.SelectedIndex == "" {
			saved.SelectedIndex = models.DefaultSavedParams().SelectedIndex
		}
	}

	r.mu.Lock()
	r.current = saved
	r.mu.Unlock()
	return saved, nil
}

// -----------------------------------------------------------------------------

// Save persists params and the selected index, replacing the whole record.
func (r *ParamsRepository) Save(params models.MStrategyParams, selectedIndex string) (models.MSavedParams, error) {
	record := models.MSavedParams{
		Params:        params,
		SelectedIndex: selectedIndex,
		SavedAt:       r.now().UTC(),
	}
	if record.SelectedIndex == "" {
		record.SelectedIndex = r.Current().SelectedIndex
	}

	data, err := json.Marshal(record)
	if err != nil {
		return record, helpers.NewStorageError("encode "+r.key, err)
	}
	if err := r.kv.Put(r.key, data); err != nil {
		return record, err
	}

	r.mu.Lock()
	r.current = record
	r.mu.Unlock()
	r.logger.Debug("Saved %s", r.key)
	return record, nil
}

// -----------------------------------------------------------------------------

// Current is the last loaded or saved record.
func (r *ParamsRepository) Current() models.MSavedParams {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}
