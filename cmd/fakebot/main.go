package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bot-mirror/src/fakebot"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"

	"github.com/joho/godotenv"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	addr := flag.String("addr", "127.0.0.1:8000", "listen address")
	demo := flag.Duration("demo", 2*time.Second, "interval between demo updates, 0 to disable")
	flag.Parse()

	_ = godotenv.Load()
	appLogger := logger.NewLogger(&models.MConfig{LogLevel: os.Getenv("BOTMIRROR_LOG_LEVEL")}, "FakeBot")
	defer appLogger.Sync()

	bot := fakebot.New(appLogger)
	bot.SeedTrades(demoTrades(3), demoTrades(25))

	srv := &http.Server{Addr: *addr, Handler: bot.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		appLogger.Info("Fake bot listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Critical("Fake bot failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *demo > 0 {
		go runDemo(ctx, bot, *demo, appLogger)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// -----------------------------------------------------------------------------

// runDemo streams a plausible session so the dashboard has something to show.
func runDemo(ctx context.Context, bot *fakebot.FakeBot, every time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	price := 24000.0
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		tick++
		price += rand.Float64()*40 - 20

		_ = bot.Push(models.MsgStatusUpdate, models.MBotStatus{
			Connection: "CONNECTED",
			Mode:       "PAPER",
			IndexPrice: price,
			Trend:      "Bullish",
			IndexName:  "NIFTY",
			IsRunning:  bot.Running(),
		})
		_ = bot.Push(models.MsgDebugLog, models.MDebugLogEntry{
			Time:    time.Now().Format("15:04:05"),
			Source:  "DEMO",
			Message: fmt.Sprintf("Index at %.2f", price),
		})

		if tick%10 == 0 {
			trade := demoTrades(1)[0]
			trade.ID = int64(1000 + tick)
			if err := bot.CompleteTrade(trade); err != nil {
				log.Debug("No viewers for trade: %v", err)
			}
			_ = bot.Push(models.MsgPlaySound, "profit")
		}
	}
}

// -----------------------------------------------------------------------------

func demoTrades(n int) []models.MTradeRecord {
	out := make([]models.MTradeRecord, n)
	now := time.Now()
	for i := range out {
		pnl := rand.Float64()*600 - 200
		out[i] = models.MTradeRecord{
			ID:            int64(n - i),
			Timestamp:     now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02 15:04:05"),
			TriggerReason: "Trend_Continuation",
			Symbol:        fmt.Sprintf("NIFTY %d CE", 24000+50*(i%5)),
			Quantity:      75,
			Pnl:           pnl,
			EntryPrice:    120,
			ExitPrice:     120 + pnl/75,
			ExitReason:    "Trailing SL",
			TrendState:    "Bullish",
			ATR:           12.5,
		}
	}
	return out
}
