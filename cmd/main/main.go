package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bot-mirror/src/config"
	"bot-mirror/src/connection"
	"bot-mirror/src/control"
	"bot-mirror/src/effects"
	"bot-mirror/src/grpc_control"
	"bot-mirror/src/helpers"
	"bot-mirror/src/initsync"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/network"
	"bot-mirror/src/router"
	"bot-mirror/src/scheduler"
	"bot-mirror/src/server"
	"bot-mirror/src/state"
	"bot-mirror/src/storage"
	"bot-mirror/src/trace"
	"bot-mirror/src/transport"
	"bot-mirror/src/utils"

	"github.com/joho/godotenv"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	// Environment first, so overrides apply while loading the config
	envErr := godotenv.Load(*envPath)

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.MConfig, config.Name)
	defer appLogger.Sync()
	if envErr != nil {
		appLogger.Debug("No dotenv loaded from %s: %v", *envPath, envErr)
	}

	// 1. Tracing
	if err := trace.Init(config.TracingEnabled, config.Name); err != nil {
		appLogger.Warning("Tracing disabled: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = trace.Shutdown(ctx)
	}()

	// 2. Persisted local store
	kv, err := storage.NewKeyValueStore(config.MConfig, appLogger.Component("Storage"))
	if err != nil {
		appLogger.Critical("Failed to init storage: %v", err)
	}
	if err := kv.Initialize(); err != nil {
		appLogger.Critical("Failed to open storage: %v", err)
	}
	defer kv.Close()

	params := storage.NewParamsRepository(kv, config.Storage.Namespace, appLogger.Component("Params"))
	if _, err := params.Load(); err != nil {
		appLogger.Warning("Using default strategy parameters: %v", err)
	}

	// 3. Client state
	calendar := utils.GetCalendar(config.Market.MIC, appLogger)
	store := state.NewStoreFromConfig(config.Store, calendar.IsOpenOnMinute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := scheduler.NewEventLoop(appLogger.Component("Loop"))
	go loop.Run(ctx)

	// 4. Inbound pipeline
	alerts := effects.NewAlertDispatcher(os.Stderr, appLogger.Component("Alerts"))
	rt := router.NewRouter(store, alerts, appLogger.Component("Router"))

	client, err := network.NewControlClient(config.MConfig, appLogger.Component("ControlClient"))
	if err != nil {
		appLogger.Critical("Failed to init control client: %v", err)
	}
	syncer := initsync.NewInitialSync(ctx, client, loop, store, rt, 0, appLogger.Component("InitialSync"))

	dialer := transport.NewWSDialer(time.Duration(config.Network.RequestTimeout)*time.Second, config.Network.UserAgent, appLogger.Component("Transport"))
	if proxy, err := helpers.ProxyFunc(config.Network.Proxy); err == nil {
		dialer.SetProxy(proxy)
	}
	manager := connection.NewManager(connection.Options{
		URL:       config.Remote.WSURL,
		Heartbeat: config.Heartbeat,
		Reconnect: config.Reconnect,
	}, dialer, loop, store, rt, syncer, appLogger.Component("Connection"))

	// 5. Dashboard
	controlService := control.NewControlService(client, params, loop, store, appLogger.Component("Control"))
	srv := server.NewDashboardServer(config.MConfig, server.Options{
		Store:     store,
		Control:   controlService,
		Sched:     loop,
		Router:    rt,
		Reconnect: func() { loop.Post(manager.ForceReconnect) },
	}, appLogger.Component("Dashboard"))
	alerts.OnAlert(srv.Alert)

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	var healthService *grpc_control.HealthService
	if config.GrpcPort > 0 {
		healthService = grpc_control.NewHealthService(config.MConfig, store, appLogger.Component("Health"))
		go func() {
			if err := healthService.Start(); err != nil {
				appLogger.Error("gRPC health server failed: %v", err)
			}
		}()
	}

	// 6. Connect
	manager.Start()
	go checkSession(ctx, controlService, loop, store, appLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// 7. Shutdown
	appLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := loop.Call(shutdownCtx, manager.Teardown); err != nil {
		appLogger.Warning("Teardown did not finish: %v", err)
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Warning("Dashboard shutdown: %v", err)
	}
	if healthService != nil {
		healthService.Stop(shutdownCtx)
	}
	cancel()
	<-loop.Done()
	appLogger.Info("Shutdown complete.")
}

// -----------------------------------------------------------------------------

// checkSession raises a notice when the bot has no broker session yet.
func checkSession(ctx context.Context, svc *control.ControlService, loop *scheduler.EventLoop, store *state.Store, log *logger.Logger) {
	status, err := svc.Status(ctx)
	if err != nil {
		log.Warning("Could not read bot session status: %v", err)
		return
	}
	if status.Status == models.AuthAuthenticated {
		log.Info("Bot session authenticated as %s", status.User)
		return
	}

	message := "Bot is not authenticated with the broker."
	if status.LoginURL != "" {
		message = fmt.Sprintf("%s Log in at %s", message, status.LoginURL)
	}
	log.Warning("%s", message)
	loop.Post(func() { store.AddNotice(models.LevelWarning, "auth", message) })
}
