package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bot-mirror/src/control"
	"bot-mirror/src/effects"
	"bot-mirror/src/fakebot"
	"bot-mirror/src/models"
	"bot-mirror/src/network"
	"bot-mirror/src/router"
	"bot-mirror/src/scheduler"
	"bot-mirror/src/state"
	"bot-mirror/src/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	bot        *fakebot.FakeBot
	v          *scheduler.VirtualScheduler
	store      *state.Store
	server     *DashboardServer
	http       *httptest.Server
	reconnects atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{bot: fakebot.New(nil)}
	botSrv := httptest.NewServer(h.bot.Handler())
	t.Cleanup(botSrv.Close)

	cfg := &models.MConfig{
		Host:     "127.0.0.1",
		Port:     8090,
		LogLevel: "INFO",
		Remote:   models.MRemoteConfig{APIURL: botSrv.URL},
		Network:  models.MNetworkConfig{RequestTimeout: 5},
		Storage:  models.MStorageConfig{DBType: "sqlite", DBPath: filepath.Join(t.TempDir(), "kv.db"), Namespace: "test"},
	}

	client, err := network.NewControlClient(cfg, nil)
	require.NoError(t, err)
	kv, err := storage.NewKeyValueStore(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, kv.Initialize())
	t.Cleanup(func() { kv.Close() })
	params := storage.NewParamsRepository(kv, "tradingBot", nil)

	h.v = scheduler.NewVirtualScheduler(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	h.store = state.NewStore(state.Options{})
	svc := control.NewControlService(client, params, h.v, h.store, nil)

	h.server = NewDashboardServer(cfg, Options{
		Store:     h.store,
		Control:   svc,
		Sched:     h.v,
		Router:    router.NewRouter(h.store, nil, nil),
		Reconnect: func() { h.reconnects.Add(1) },
	}, nil)
	h.http = httptest.NewServer(h.server.Handler())
	t.Cleanup(func() {
		h.http.Close()
		_ = h.server.Stop(context.Background())
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.http.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestSnapshotAndHealth(t *testing.T) {
	h := newHarness(t)
	h.store.SetBotStatus(models.MBotStatus{IndexName: "NIFTY", IsRunning: true})

	resp, body := h.do(t, http.MethodGet, "/api/snapshot", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "NIFTY", body["bot_status"].(map[string]interface{})["indexName"])
	assert.Equal(t, true, body["stale"])

	resp, body = h.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "DISCONNECTED", body["connection"])
	assert.Contains(t, body, "messages")
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	h.store.SetAllTimeTradeHistory([]models.MTradeRecord{{ID: 1, Pnl: 100}, {ID: 2, Pnl: -40}})

	resp, body := h.do(t, http.MethodGet, "/api/summary", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	allTime := body["all_time"].(map[string]interface{})
	assert.Equal(t, 2.0, allTime["trades"])
	assert.Equal(t, 60.0, allTime["net_pnl"])
}

func TestCommandsReachTheBot(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/control/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bot started.", body["message"])
	assert.True(t, h.bot.Running())
	require.NotNil(t, h.bot.LastStart())
	assert.Equal(t, "SENSEX", h.bot.LastStart().SelectedIndex)

	resp, body = h.do(t, http.MethodPost, "/api/control/start", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bot is already running.", body["detail"])

	resp, _ = h.do(t, http.MethodPost, "/api/control/stop", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, h.bot.Running())
}

func TestUnknownCommandIs404(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/api/control/liquidate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManualExitWithoutTrade(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/control/start", nil)

	resp, body := h.do(t, http.MethodPost, "/api/control/manual_exit", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No active trade to exit.", body["detail"])

	h.v.Drain()
	notes := h.store.Snapshot().Notifications
	require.NotEmpty(t, notes)
	assert.Equal(t, models.LevelError, notes[0].Level)
}

func TestParamsPutPersistsAndForwards(t *testing.T) {
	h := newHarness(t)
	params := models.DefaultSavedParams().Params
	params.StartCapital = 75000

	resp, _ := h.do(t, http.MethodPut, "/api/params", models.MSavedParams{Params: params, SelectedIndex: "NIFTY"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, h.bot.Params())
	assert.Equal(t, 75000.0, h.bot.Params().StartCapital)

	resp, body := h.do(t, http.MethodGet, "/api/params", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "NIFTY", body["selectedIndex"])
}

func TestAuthenticateStructuredFailure(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/authenticate", models.MTokenRequest{RequestToken: "invalid"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Token is invalid or has expired.", body["detail"])

	resp, body = h.do(t, http.MethodPost, "/api/authenticate", models.MTokenRequest{RequestToken: "good"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "AB1234", body["user"])

	resp, body = h.do(t, http.MethodGet, "/api/auth/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.AuthAuthenticated, body["status"])
}

func TestWatchlistValidation(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/api/watchlist", models.MWatchlistRequest{Side: "XX", Strike: 100})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/watchlist", models.MWatchlistRequest{Side: "pe", Strike: 24000})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReconnectAndDismiss(t *testing.T) {
	h := newHarness(t)
	h.store.AddNotice(models.LevelWarning, "bot", "Margins low")

	resp, _ := h.do(t, http.MethodPost, "/api/reconnect", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int32(1), h.reconnects.Load())

	resp, _ = h.do(t, http.MethodPost, "/api/notices/dismiss", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	h.v.Drain()
	assert.Empty(t, h.store.Snapshot().Notices)
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	req, err := http.NewRequest(http.MethodOptions, h.http.URL+"/api/snapshot", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://127.0.0.1:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://127.0.0.1:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func readFrame(t *testing.T, conn *websocket.Conn) models.MEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env models.MEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestViewerReceivesSnapshotsAndAlerts(t *testing.T) {
	h := newHarness(t)
	wsURL := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readFrame(t, conn)
	assert.Equal(t, models.MsgSnapshot, first.Type)
	require.Eventually(t, func() bool { return h.server.Viewers() == 1 }, time.Second, 10*time.Millisecond)

	h.store.SetBotStatus(models.MBotStatus{IndexName: "BANKNIFTY"})
	for {
		env := readFrame(t, conn)
		require.Equal(t, models.MsgSnapshot, env.Type)
		var snap models.MSnapshot
		require.NoError(t, json.Unmarshal(env.Payload, &snap))
		if snap.BotStatus.IndexName == "BANKNIFTY" {
			break
		}
	}

	h.server.Alert(effects.Alert{Name: effects.SoundProfit, Bells: 2})
	alert := readFrame(t, conn)
	assert.Equal(t, models.MsgPlaySound, alert.Type)
	assert.JSONEq(t, `"profit"`, string(alert.Payload))
}
