package connection_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bot-mirror/src/connection"
	"bot-mirror/src/control"
	"bot-mirror/src/effects"
	"bot-mirror/src/fakebot"
	"bot-mirror/src/initsync"
	"bot-mirror/src/models"
	"bot-mirror/src/network"
	"bot-mirror/src/router"
	"bot-mirror/src/scheduler"
	"bot-mirror/src/state"
	"bot-mirror/src/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second

// stack is the whole client running against a fake bot over real sockets.
type stack struct {
	bot     *fakebot.FakeBot
	loop    *scheduler.EventLoop
	store   *state.Store
	manager *connection.Manager
	client  *network.ControlClient
	sounds  atomic.Int32
}

func newStack(t *testing.T, heartbeat models.MHeartbeatConfig) *stack {
	t.Helper()
	s := &stack{bot: fakebot.New(nil)}
	srv := httptest.NewServer(s.bot.Handler())
	t.Cleanup(srv.Close)

	cfg := &models.MConfig{
		Remote:  models.MRemoteConfig{APIURL: srv.URL, WSURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"},
		Network: models.MNetworkConfig{RequestTimeout: 5, MaxRetries: 0},
	}
	client, err := network.NewControlClient(cfg, nil)
	require.NoError(t, err)
	s.client = client

	ctx, cancel := context.WithCancel(context.Background())
	s.loop = scheduler.NewEventLoop(nil)
	go s.loop.Run(ctx)

	s.store = state.NewStore(state.Options{})
	alerts := effects.NewAlertDispatcher(nil, nil)
	alerts.OnAlert(func(effects.Alert) { s.sounds.Add(1) })
	rt := router.NewRouter(s.store, alerts, nil)
	syncer := initsync.NewInitialSync(ctx, client, s.loop, s.store, rt, 2*time.Second, nil)

	s.manager = connection.NewManager(connection.Options{
		URL:       cfg.Remote.WSURL,
		Heartbeat: heartbeat,
		Reconnect: models.MReconnectConfig{Strategy: models.ReconnectExponential, BaseDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond},
	}, transport.NewWSDialer(time.Second, "", nil), s.loop, s.store, rt, syncer, nil)

	t.Cleanup(func() {
		_ = s.loop.Call(context.Background(), s.manager.Teardown)
		cancel()
	})
	return s
}

func defaultHeartbeat() models.MHeartbeatConfig {
	return models.MHeartbeatConfig{Interval: time.Second, Timeout: 3 * time.Second}
}

func (s *stack) connected() bool {
	return s.store.Connection() == models.StateConnected
}

func seed(prefix string, n int) []models.MTradeRecord {
	out := make([]models.MTradeRecord, n)
	for i := range out {
		out[i] = models.MTradeRecord{ID: int64(n - i), Symbol: fmt.Sprintf("%s-%d", prefix, i), Quantity: 75, Pnl: 10}
	}
	return out
}

// Connect, seed history, then stream updates.
func TestEndToEndSyncAndStream(t *testing.T) {
	s := newStack(t, defaultHeartbeat())
	s.bot.SeedTrades(seed("today", 3), seed("all", 10))
	s.manager.Start()

	require.Eventually(t, func() bool {
		snap := s.store.Snapshot()
		return snap.Connection == models.StateConnected && len(snap.TradeHistory) == 3 && len(snap.AllTimeTradeHistory) == 10
	}, waitFor, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.bot.Connections() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, s.bot.Push(models.MsgStatusUpdate, models.MBotStatus{Connection: "CONNECTED", Mode: "PAPER", IndexName: "NIFTY", IsRunning: true}))
	require.NoError(t, s.bot.Push(models.MsgPlaySound, "entry"))
	require.NoError(t, s.bot.CompleteTrade(models.MTradeRecord{ID: 99, Symbol: "NIFTY 24000 CE", Quantity: 75, Pnl: 250}))

	require.Eventually(t, func() bool {
		snap := s.store.Snapshot()
		return snap.BotStatus.IndexName == "NIFTY" && len(snap.TradeHistory) == 4 && snap.TradeHistory[0].ID == 99
	}, waitFor, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return s.sounds.Load() == 1 }, waitFor, 10*time.Millisecond)
	assert.False(t, s.store.Snapshot().Stale)
}

// Stop clears mirrored market data but keeps the bot's final status.
func TestEndToEndStopKeepsFinalStatus(t *testing.T) {
	s := newStack(t, defaultHeartbeat())
	s.manager.Start()
	require.Eventually(t, func() bool { return s.connected() && s.bot.Connections() == 1 }, waitFor, 10*time.Millisecond)

	_, err := s.client.Start(t.Context(), models.DefaultSavedParams().Params, "NIFTY")
	require.NoError(t, err)
	require.NoError(t, s.bot.Push(models.MsgStatusUpdate, models.MBotStatus{Connection: "CONNECTED", Mode: "PAPER", IndexName: "NIFTY", IsRunning: true}))
	require.NoError(t, s.bot.Push(models.MsgOptionChainUpdate, []models.MOptionChainRow{{Strike: 24000}}))
	require.Eventually(t, func() bool {
		snap := s.store.Snapshot()
		return snap.BotStatus.IsRunning && len(snap.OptionChain) == 1
	}, waitFor, 10*time.Millisecond)

	svc := control.NewControlService(s.client, nil, s.loop, s.store, nil)
	_, err = svc.Execute(t.Context(), control.CommandStop)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := s.store.Snapshot()
		return snap.BotStatus.Mode == "NOT STARTED" && len(snap.OptionChain) == 0
	}, waitFor, 10*time.Millisecond)
	snap := s.store.Snapshot()
	assert.False(t, snap.BotStatus.IsRunning)
	assert.Equal(t, "DISCONNECTED", snap.BotStatus.Connection)
}

// A malformed frame between two good ones changes nothing.
func TestEndToEndMalformedFramesAreDropped(t *testing.T) {
	s := newStack(t, defaultHeartbeat())
	s.manager.Start()
	require.Eventually(t, func() bool { return s.connected() && s.bot.Connections() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, s.bot.Push(models.MsgDailyPerformanceUpdate, models.MDailyPerformance{NetPnl: 120, Wins: 2}))
	require.NoError(t, s.bot.PushRaw([]byte(`{"type":"status_update","payload":`)))
	require.NoError(t, s.bot.PushRaw([]byte(`{"type":"mystery","payload":{}}`)))
	require.NoError(t, s.bot.Push(models.MsgDebugLog, models.MDebugLogEntry{Time: "10:00:00", Source: "TEST", Message: "marker"}))

	require.Eventually(t, func() bool { return len(s.store.Snapshot().DebugLog) == 1 }, waitFor, 10*time.Millisecond)
	snap := s.store.Snapshot()
	assert.Equal(t, 120.0, snap.DailyPerformance.NetPnl)
	assert.Equal(t, models.MBotStatus{}, snap.BotStatus)
	assert.True(t, s.connected())
}

// A dropped stream reconnects, keeps mirrored state and re-syncs.
func TestEndToEndReconnectAfterDrop(t *testing.T) {
	s := newStack(t, defaultHeartbeat())
	s.manager.Start()
	require.Eventually(t, func() bool { return s.connected() && s.bot.Connections() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, s.bot.Push(models.MsgStatusUpdate, models.MBotStatus{IndexName: "SENSEX"}))
	require.Eventually(t, func() bool { return s.store.Snapshot().BotStatus.IndexName == "SENSEX" }, waitFor, 10*time.Millisecond)

	s.bot.SeedTrades(seed("today", 2), seed("all", 2))
	s.bot.DropConnections()

	require.Eventually(t, func() bool {
		snap := s.store.Snapshot()
		return s.bot.Accepted() == 2 && snap.Connection == models.StateConnected && len(snap.TradeHistory) == 2
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, "SENSEX", s.store.Snapshot().BotStatus.IndexName)
}

// A silent server is closed for liveness and dialed again.
func TestEndToEndLivenessTimeout(t *testing.T) {
	s := newStack(t, models.MHeartbeatConfig{Interval: 50 * time.Millisecond, Timeout: 150 * time.Millisecond})
	s.bot.SetRespondPong(false)
	s.manager.Start()

	require.Eventually(t, func() bool { return s.bot.Accepted() >= 2 }, waitFor, 10*time.Millisecond)
	assert.Greater(t, s.bot.Pings(), int64(0))
}

// With pongs flowing the connection stays up across many intervals.
func TestEndToEndPongsKeepConnectionAlive(t *testing.T) {
	s := newStack(t, models.MHeartbeatConfig{Interval: 50 * time.Millisecond, Timeout: 150 * time.Millisecond})
	s.manager.Start()
	require.Eventually(t, func() bool { return s.connected() }, waitFor, 10*time.Millisecond)

	require.Eventually(t, func() bool { return s.bot.Pings() >= 8 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, int64(1), s.bot.Accepted())
	assert.True(t, s.connected())
}

// A failed history fetch becomes a notification; streaming continues.
func TestEndToEndHistoryFailure(t *testing.T) {
	s := newStack(t, defaultHeartbeat())
	s.bot.SetHistoryFailure(true)
	s.manager.Start()

	require.Eventually(t, func() bool { return len(s.store.Snapshot().Notifications) == 2 }, waitFor, 10*time.Millisecond)
	for _, n := range s.store.Snapshot().Notifications {
		assert.Equal(t, models.LevelError, n.Level)
		assert.Contains(t, n.Message, "Database is locked.")
	}
	assert.True(t, s.connected())
}

// After teardown nothing dials again.
func TestEndToEndTeardown(t *testing.T) {
	s := newStack(t, defaultHeartbeat())
	s.manager.Start()
	require.Eventually(t, func() bool { return s.connected() && s.bot.Connections() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, s.loop.Call(context.Background(), s.manager.Teardown))
	require.Eventually(t, func() bool { return s.bot.Connections() == 0 }, waitFor, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(1), s.bot.Accepted())
	assert.Equal(t, models.StateDisconnected, s.store.Connection())
}
