package fakebot

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"bot-mirror/src/logger"
	"bot-mirror/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const writeWait = 2 * time.Second

// -----------------------------------------------------------------------------
// FakeBot emulates the trading bot backend: the REST control API plus the
// /ws stream. Tests drive it through Push and the Set* knobs.
// -----------------------------------------------------------------------------

type FakeBot struct {
	Logger *logger.Logger
	engine *gin.Engine

	mu            sync.Mutex
	conns         map[*botConn]struct{}
	running       bool
	paused        bool
	inTrade       bool
	authenticated bool
	user          string
	today         []models.MTradeRecord
	allTime       []models.MTradeRecord
	historyFail   bool
	lastStart     *models.MStartRequest
	params        *models.MStrategyParams
	watchlist     []models.MWatchEntry

	respondPong atomic.Bool
	pings       atomic.Int64
	accepted    atomic.Int64
}

type botConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *botConn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// -----------------------------------------------------------------------------

func New(log *logger.Logger) *FakeBot {
	if log == nil {
		log = logger.NewNop("FakeBot")
	}
	gin.SetMode(gin.ReleaseMode)

	b := &FakeBot{
		Logger: log,
		engine: gin.New(),
		conns:  make(map[*botConn]struct{}),
		user:   "AB1234",
	}
	b.respondPong.Store(true)
	b.setupRoutes()
	return b
}

// -----------------------------------------------------------------------------

func (b *FakeBot) setupRoutes() {
	api := b.engine.Group("/api")
	api.GET("/status", b.getStatus)
	api.POST("/authenticate", b.postAuthenticate)
	api.POST("/start", b.postStart)
	api.POST("/stop", b.postStop)
	api.POST("/pause", b.postPause)
	api.POST("/resume", b.postResume)
	api.POST("/manual_exit", b.postManualExit)
	api.POST("/update_strategy_params", b.postUpdateParams)
	api.POST("/optimize", b.postOptimize)
	api.POST("/add_to_watchlist", b.postWatchlist)
	api.GET("/trade_history", b.getTrades(false))
	api.GET("/trade_history_all", b.getTrades(true))

	b.engine.GET("/ws", b.handleWebSocket)
}

// -----------------------------------------------------------------------------

func (b *FakeBot) Handler() http.Handler {
	return b.engine
}

// -----------------------------------------------------------------------------
// Test knobs
// -----------------------------------------------------------------------------

// Push sends one {type, payload} frame to every open stream.
func (b *FakeBot) Push(msgType string, payload interface{}) error {
	frame, err := models.NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.PushRaw(frame)
}

// PushRaw sends frame as is, malformed or not.
func (b *FakeBot) PushRaw(frame []byte) error {
	var firstErr error
	for _, c := range b.snapshotConns() {
		if err := c.write(frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// -----------------------------------------------------------------------------

// SeedTrades replaces both trade histories, newest first.
func (b *FakeBot) SeedTrades(today, allTime []models.MTradeRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.today = append([]models.MTradeRecord(nil), today...)
	b.allTime = append([]models.MTradeRecord(nil), allTime...)
}

// -----------------------------------------------------------------------------

// CompleteTrade records a trade in both histories and streams new_trade_log.
func (b *FakeBot) CompleteTrade(trade models.MTradeRecord) error {
	b.mu.Lock()
	b.today = append([]models.MTradeRecord{trade}, b.today...)
	b.allTime = append([]models.MTradeRecord{trade}, b.allTime...)
	b.mu.Unlock()
	return b.Push(models.MsgNewTradeLog, trade)
}

// -----------------------------------------------------------------------------

func (b *FakeBot) SetHistoryFailure(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.historyFail = fail
}

func (b *FakeBot) SetRespondPong(on bool) {
	b.respondPong.Store(on)
}

func (b *FakeBot) SetAuthenticated(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authenticated = on
}

func (b *FakeBot) SetInTrade(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inTrade = on
}

// -----------------------------------------------------------------------------

// DropConnections severs every stream without a close handshake.
func (b *FakeBot) DropConnections() {
	for _, c := range b.snapshotConns() {
		_ = c.conn.UnderlyingConn().Close()
	}
}

// -----------------------------------------------------------------------------

func (b *FakeBot) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Accepted counts every stream ever opened.
func (b *FakeBot) Accepted() int64 { return b.accepted.Load() }

// Pings counts ping frames received.
func (b *FakeBot) Pings() int64 { return b.pings.Load() }

func (b *FakeBot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// LastStart is the body of the most recent successful start.
func (b *FakeBot) LastStart() *models.MStartRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastStart
}

// Params is the last parameter set received by update_strategy_params.
func (b *FakeBot) Params() *models.MStrategyParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

// -----------------------------------------------------------------------------

func (b *FakeBot) snapshotConns() []*botConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*botConn, 0, len(b.conns))
	for c := range b.conns {
		out = append(out, c)
	}
	return out
}

// -----------------------------------------------------------------------------
// Stream
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (b *FakeBot) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	bc := &botConn{conn: conn}
	b.mu.Lock()
	b.conns[bc] = struct{}{}
	b.mu.Unlock()
	b.accepted.Add(1)

	go b.readLoop(bc)
}

// -----------------------------------------------------------------------------

func (b *FakeBot) readLoop(bc *botConn) {
	defer func() {
		b.mu.Lock()
		delete(b.conns, bc)
		b.mu.Unlock()
		bc.conn.Close()
	}()

	pong, _ := models.NewEnvelope(models.MsgPong, nil)
	for {
		_, message, err := bc.conn.ReadMessage()
		if err != nil {
			return
		}
		if gjson.GetBytes(message, "type").String() != models.MsgPing {
			continue
		}
		b.pings.Add(1)
		if b.respondPong.Load() {
			if err := bc.write(pong); err != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------
// REST
// -----------------------------------------------------------------------------

func fail(c *gin.Context, status int, detail interface{}) {
	c.JSON(status, gin.H{"detail": detail})
}

func success(c *gin.Context, message string) {
	c.JSON(http.StatusOK, models.MControlResponse{Status: "success", Message: message})
}

// -----------------------------------------------------------------------------

func (b *FakeBot) getStatus(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.authenticated {
		c.JSON(http.StatusOK, models.MAuthStatus{Status: models.AuthAuthenticated, User: b.user})
		return
	}
	c.JSON(http.StatusOK, models.MAuthStatus{Status: models.AuthUnauthenticated})
}

// -----------------------------------------------------------------------------

func (b *FakeBot) postAuthenticate(c *gin.Context) {
	var req models.MTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RequestToken == "" {
		fail(c, http.StatusUnprocessableEntity, "request_token is required")
		return
	}
	if req.RequestToken == "invalid" {
		fail(c, http.StatusBadRequest, gin.H{"error_type": "TokenException", "message": "Token is invalid or has expired."})
		return
	}

	b.mu.Lock()
	b.authenticated = true
	user := b.user
	b.mu.Unlock()
	c.JSON(http.StatusOK, models.MControlResponse{Status: "success", Message: "Authentication successful.", User: user})
}

// -----------------------------------------------------------------------------

func (b *FakeBot) postStart(c *gin.Context) {
	var req models.MStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		fail(c, http.StatusBadRequest, "Bot is already running.")
		return
	}
	b.running = true
	b.paused = false
	b.lastStart = &req
	b.mu.Unlock()

	success(c, "Bot started.")
}

// -----------------------------------------------------------------------------

func (b *FakeBot) postStop(c *gin.Context) {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		fail(c, http.StatusBadRequest, "Bot is not running.")
		return
	}
	b.running = false
	b.paused = false
	b.inTrade = false
	b.mu.Unlock()

	// the final status goes out before the answer
	final := models.MBotStatus{Connection: "DISCONNECTED", Mode: "NOT STARTED", Trend: "---"}
	if err := b.Push(models.MsgStatusUpdate, final); err != nil {
		b.Logger.Debug("Final status not delivered: %v", err)
	}
	success(c, "Bot stopped.")
}

// -----------------------------------------------------------------------------

func (b *FakeBot) postPause(c *gin.Context) {
	b.toggle(c, true, "Bot paused.")
}

func (b *FakeBot) postResume(c *gin.Context) {
	b.toggle(c, false, "Bot resumed.")
}

func (b *FakeBot) toggle(c *gin.Context, paused bool, message string) {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		fail(c, http.StatusBadRequest, "Bot is not running.")
		return
	}
	b.paused = paused
	b.mu.Unlock()
	success(c, message)
}

// -----------------------------------------------------------------------------

func (b *FakeBot) postManualExit(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		fail(c, http.StatusBadRequest, "Bot is not running.")
		return
	}
	if !b.inTrade {
		fail(c, http.StatusBadRequest, "No active trade to exit.")
		return
	}
	b.inTrade = false
	success(c, "Manual exit signal sent.")
}

// -----------------------------------------------------------------------------

func (b *FakeBot) postUpdateParams(c *gin.Context) {
	var params models.MStrategyParams
	if err := c.ShouldBindJSON(&params); err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	b.mu.Lock()
	b.params = &params
	b.mu.Unlock()
	success(c, "Strategy parameters updated.")
}

// -----------------------------------------------------------------------------

func (b *FakeBot) postOptimize(c *gin.Context) {
	b.mu.Lock()
	trades := len(b.allTime)
	b.mu.Unlock()

	if trades < 10 {
		c.JSON(http.StatusOK, models.MOptimizeResponse{Status: "error", Report: []string{"Not enough trades to optimize."}})
		return
	}
	c.JSON(http.StatusOK, models.MOptimizeResponse{Status: "success", Report: []string{"Parameters are within tolerance."}})
}

// -----------------------------------------------------------------------------

func (b *FakeBot) postWatchlist(c *gin.Context) {
	var req models.MWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	b.mu.Lock()
	b.watchlist = append(b.watchlist, models.MWatchEntry{Symbol: "NIFTY", Type: req.Side, Strike: req.Strike})
	list := append([]models.MWatchEntry(nil), b.watchlist...)
	b.mu.Unlock()

	_ = b.Push(models.MsgUOAListUpdate, list)
	success(c, "Added to watchlist.")
}

// -----------------------------------------------------------------------------

func (b *FakeBot) getTrades(allTime bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		failing := b.historyFail
		list := b.today
		if allTime {
			list = b.allTime
		}
		out, err := json.Marshal(append([]models.MTradeRecord{}, list...))
		b.mu.Unlock()

		if failing {
			fail(c, http.StatusInternalServerError, "Database is locked.")
			return
		}
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, "application/json", out)
	}
}
