package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bot-mirror/src/helpers"
	"bot-mirror/src/models"
	"bot-mirror/src/scheduler"
	"bot-mirror/src/state"
	"bot-mirror/src/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockControlAPI is a testify mock of the remote control API.
type MockControlAPI struct {
	mock.Mock
}

func (m *MockControlAPI) response(args mock.Arguments) (*models.MControlResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MControlResponse), args.Error(1)
}

func (m *MockControlAPI) TodayTrades(ctx context.Context) ([]models.MTradeRecord, error) {
	args := m.Called(ctx)
	return nil, args.Error(1)
}

func (m *MockControlAPI) AllTimeTrades(ctx context.Context) ([]models.MTradeRecord, error) {
	args := m.Called(ctx)
	return nil, args.Error(1)
}

func (m *MockControlAPI) Status(ctx context.Context) (*models.MAuthStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MAuthStatus), args.Error(1)
}

func (m *MockControlAPI) Authenticate(ctx context.Context, token string) (*models.MControlResponse, error) {
	return m.response(m.Called(ctx, token))
}

func (m *MockControlAPI) Start(ctx context.Context, params models.MStrategyParams, index string) (*models.MControlResponse, error) {
	return m.response(m.Called(ctx, params, index))
}

func (m *MockControlAPI) Stop(ctx context.Context) (*models.MControlResponse, error) {
	return m.response(m.Called(ctx))
}

func (m *MockControlAPI) Pause(ctx context.Context) (*models.MControlResponse, error) {
	return m.response(m.Called(ctx))
}

func (m *MockControlAPI) Resume(ctx context.Context) (*models.MControlResponse, error) {
	return m.response(m.Called(ctx))
}

func (m *MockControlAPI) ManualExit(ctx context.Context) (*models.MControlResponse, error) {
	return m.response(m.Called(ctx))
}

func (m *MockControlAPI) UpdateParams(ctx context.Context, params models.MStrategyParams) (*models.MControlResponse, error) {
	return m.response(m.Called(ctx, params))
}

func (m *MockControlAPI) Optimize(ctx context.Context) (*models.MOptimizeResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MOptimizeResponse), args.Error(1)
}

func (m *MockControlAPI) AddToWatchlist(ctx context.Context, side string, strike float64) (*models.MControlResponse, error) {
	return m.response(m.Called(ctx, side, strike))
}

// memoryKV keeps values in a map.
type memoryKV struct {
	mu     sync.Mutex
	values map[string][]byte
	failOn string
}

func (kv *memoryKV) Initialize() error { return nil }
func (kv *memoryKV) Close() error      { return nil }

func (kv *memoryKV) Get(key string) ([]byte, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.values[key]
	return v, ok, nil
}

func (kv *memoryKV) Put(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.failOn == key {
		return helpers.NewStorageError("disk full", nil)
	}
	kv.values[key] = value
	return nil
}

func (kv *memoryKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return nil
}

type fixture struct {
	v       *scheduler.VirtualScheduler
	store   *state.Store
	api     *MockControlAPI
	kv      *memoryKV
	params  *storage.ParamsRepository
	service *ControlService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v := scheduler.NewVirtualScheduler(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	store := state.NewStore(state.Options{Now: v.Now})
	api := &MockControlAPI{}
	kv := &memoryKV{values: map[string][]byte{}}
	params := storage.NewParamsRepository(kv, "tradingBot", nil)
	_, err := params.Load()
	require.NoError(t, err)

	t.Cleanup(func() { api.AssertExpectations(t) })
	return &fixture{
		v:       v,
		store:   store,
		api:     api,
		kv:      kv,
		params:  params,
		service: NewControlService(api, params, v, store, nil),
	}
}

func ok(msg string) *models.MControlResponse {
	return &models.MControlResponse{Status: "success", Message: msg}
}

func TestStartSendsSavedParams(t *testing.T) {
	f := newFixture(t)
	saved := models.DefaultSavedParams()
	f.api.On("Start", mock.Anything, saved.Params, "SENSEX").Return(ok("Bot started."), nil).Once()

	resp, err := f.service.Execute(t.Context(), "start")
	require.NoError(t, err)
	assert.Equal(t, "Bot started.", resp.Message)

	f.v.Drain()
	notes := f.store.Snapshot().Notifications
	require.Len(t, notes, 1)
	assert.Equal(t, models.LevelSuccess, notes[0].Level)
}

func TestStopResetsRealtimeSlices(t *testing.T) {
	f := newFixture(t)
	f.store.SetBotStatus(models.MBotStatus{Connection: "CONNECTED", IsRunning: true})
	f.store.SetOptionChain([]models.MOptionChainRow{{Strike: 24000}})
	f.api.On("Stop", mock.Anything).Return(ok("Bot stopped."), nil).Once()

	_, err := f.service.Execute(t.Context(), "STOP")
	require.NoError(t, err)
	f.v.Drain()

	snap := f.store.Snapshot()
	assert.Equal(t, models.MBotStatus{}, snap.BotStatus)
	assert.Empty(t, snap.OptionChain)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "Bot stopped.", snap.Notifications[0].Message)
}

func TestStopKeepsFinalStatusFromTheBot(t *testing.T) {
	f := newFixture(t)
	f.store.SetBotStatus(models.MBotStatus{Connection: "CONNECTED", Mode: "RUNNING", IsRunning: true})
	f.store.SetOptionChain([]models.MOptionChainRow{{Strike: 24000}})

	final := models.MBotStatus{Connection: "DISCONNECTED", Mode: "NOT STARTED"}
	f.api.On("Stop", mock.Anything).Return(ok("Bot stopped."), nil).Once().Run(func(mock.Arguments) {
		// the bot streams its final status before answering
		f.v.Post(func() { f.store.SetBotStatus(final) })
	})

	_, err := f.service.Execute(t.Context(), "stop")
	require.NoError(t, err)
	f.v.Drain()

	snap := f.store.Snapshot()
	assert.Equal(t, final, snap.BotStatus)
	assert.Empty(t, snap.OptionChain)
}

func TestFailedCommandLeavesStateAlone(t *testing.T) {
	f := newFixture(t)
	status := models.MBotStatus{Connection: "CONNECTED", IsRunning: true}
	f.store.SetBotStatus(status)
	f.api.On("Stop", mock.Anything).Return(nil, helpers.NewRequestError("POST /api/stop", 400, "Bot is not running.")).Once()

	_, err := f.service.Execute(t.Context(), "stop")
	var reqErr *helpers.RequestError
	require.True(t, errors.As(err, &reqErr))
	f.v.Drain()

	snap := f.store.Snapshot()
	assert.Equal(t, status, snap.BotStatus)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, models.LevelError, snap.Notifications[0].Level)
	assert.Contains(t, snap.Notifications[0].Message, "Bot is not running.")
}

func TestPauseResumeManualExit(t *testing.T) {
	f := newFixture(t)
	f.api.On("Pause", mock.Anything).Return(ok("Paused."), nil).Once()
	f.api.On("Resume", mock.Anything).Return(ok("Resumed."), nil).Once()
	f.api.On("ManualExit", mock.Anything).Return(ok("Exit sent."), nil).Once()

	for _, cmd := range []string{CommandPause, CommandResume, CommandManualExit} {
		_, err := f.service.Execute(t.Context(), cmd)
		require.NoError(t, err)
	}
	f.v.Drain()
	assert.Len(t, f.store.Snapshot().Notifications, 3)
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Execute(t.Context(), "liquidate")
	assert.True(t, errors.Is(err, ErrUnknownCommand))
}

func TestClearHistoryIsLocal(t *testing.T) {
	f := newFixture(t)
	f.store.SetTradeHistory([]models.MTradeRecord{{ID: 1, Symbol: "A"}})
	f.store.SetAllTimeTradeHistory([]models.MTradeRecord{{ID: 1, Symbol: "A"}})

	_, err := f.service.Execute(t.Context(), CommandClearHistory)
	require.NoError(t, err)
	f.v.Drain()

	snap := f.store.Snapshot()
	assert.Empty(t, snap.TradeHistory)
	assert.Len(t, snap.AllTimeTradeHistory, 1)
}

func TestUpdateParamsPersistsBeforeForwarding(t *testing.T) {
	f := newFixture(t)
	params := models.DefaultSavedParams().Params
	params.DailySL = -5000
	f.api.On("UpdateParams", mock.Anything, params).Return(nil, helpers.NewTransportError("POST /api/update_strategy_params", errors.New("refused"))).Once()

	saved, err := f.service.UpdateParams(t.Context(), params, "NIFTY")
	require.Error(t, err)
	assert.Equal(t, -5000.0, saved.Params.DailySL)

	reloaded, err := storage.NewParamsRepository(f.kv, "tradingBot", nil).Load()
	require.NoError(t, err)
	assert.Equal(t, -5000.0, reloaded.Params.DailySL)
	assert.Equal(t, "NIFTY", reloaded.SelectedIndex)
}

func TestUpdateParamsStorageFailureDoesNotForward(t *testing.T) {
	f := newFixture(t)
	f.kv.failOn = f.params.Key()

	_, err := f.service.UpdateParams(t.Context(), models.DefaultSavedParams().Params, "")
	var storageErr *helpers.StorageError
	require.True(t, errors.As(err, &storageErr))
	f.api.AssertNotCalled(t, "UpdateParams", mock.Anything, mock.Anything)
}

func TestAddToWatchlistValidatesSide(t *testing.T) {
	f := newFixture(t)
	f.api.On("AddToWatchlist", mock.Anything, "CE", 24500.0).Return(ok("Added."), nil).Once()

	_, err := f.service.AddToWatchlist(t.Context(), "ce", 24500)
	require.NoError(t, err)

	_, err = f.service.AddToWatchlist(t.Context(), "XX", 24500)
	assert.Error(t, err)
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Authenticate(t.Context(), "  ")
	assert.Error(t, err)

	f.api.On("Authenticate", mock.Anything, "tok").Return(&models.MControlResponse{Status: "success", Message: "Authenticated", User: "AB1234"}, nil).Once()
	resp, err := f.service.Authenticate(t.Context(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "AB1234", resp.User)
}

func TestOptimizeNotifies(t *testing.T) {
	f := newFixture(t)
	f.api.On("Optimize", mock.Anything).Return(&models.MOptimizeResponse{Status: "error", Report: []string{"not enough trades"}}, nil).Once()

	resp, err := f.service.Optimize(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"not enough trades"}, resp.Report)

	f.v.Drain()
	notes := f.store.Snapshot().Notifications
	require.Len(t, notes, 1)
	assert.Equal(t, models.LevelWarning, notes[0].Level)
}
