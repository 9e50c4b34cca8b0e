package control

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/state"
	"bot-mirror/src/storage"
)

// Commands accepted by Execute
const (
	CommandStart        = "start"
	CommandStop         = "stop"
	CommandPause        = "pause"
	CommandResume       = "resume"
	CommandManualExit   = "manual_exit"
	CommandClearHistory = "clear_history"
)

var (
	// ErrUnknownCommand is returned by Execute for names it does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgument marks requests rejected before reaching the bot.
	ErrInvalidArgument = errors.New("invalid argument")
)

// -----------------------------------------------------------------------------
// ControlService turns operator intent into control API calls. It is called
// from request goroutines; every store write is posted to the scheduler.
// -----------------------------------------------------------------------------

type ControlService struct {
	API    interfaces.IControlAPI
	Params *storage.ParamsRepository
	Logger *logger.Logger
	sched  interfaces.IScheduler
	store  *state.Store
}

// -----------------------------------------------------------------------------

func NewControlService(api interfaces.IControlAPI, params *storage.ParamsRepository, sched interfaces.IScheduler, store *state.Store, log *logger.Logger) *ControlService {
	if log == nil {
		log = logger.NewNop("Control")
	}
	return &ControlService{
		API:    api,
		Params: params,
		Logger: log,
		sched:  sched,
		store:  store,
	}
}

// -----------------------------------------------------------------------------

// Execute runs a named bot command. A failed command leaves the mirrored
// state untouched and raises a notification.
func (s *ControlService) Execute(ctx context.Context, command string) (*models.MControlResponse, error) {
	var (
		resp *models.MControlResponse
		err  error
	)

	switch strings.ToLower(command) {
	case CommandStart:
		saved := s.Params.Current()
		resp, err = s.API.Start(ctx, saved.Params, saved.SelectedIndex)
	case CommandStop:
		since := s.store.Version()
		resp, err = s.API.Stop(ctx)
		if err == nil {
			s.sched.Post(func() { s.store.ResetRealtimeSlicesSince(since) })
		}
	case CommandPause:
		resp, err = s.API.Pause(ctx)
	case CommandResume:
		resp, err = s.API.Resume(ctx)
	case CommandManualExit:
		resp, err = s.API.ManualExit(ctx)
	case CommandClearHistory:
		s.sched.Post(s.store.ClearTradeHistory)
		resp = &models.MControlResponse{Status: "success", Message: "Trade history cleared."}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	return s.report(command, resp, err)
}

// -----------------------------------------------------------------------------

// UpdateParams persists the edit locally first, then forwards it. A failed
// forward keeps the local copy.
func (s *ControlService) UpdateParams(ctx context.Context, params models.MStrategyParams, selectedIndex string) (models.MSavedParams, error) {
	saved, err := s.Params.Save(params, selectedIndex)
	if err != nil {
		s.notify(models.LevelError, fmt.Sprintf("Could not save parameters: %v", err))
		return saved, err
	}

	resp, err := s.API.UpdateParams(ctx, params)
	if _, err := s.report("update_params", resp, err); err != nil {
		return saved, err
	}
	return saved, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) Authenticate(ctx context.Context, requestToken string) (*models.MControlResponse, error) {
	if strings.TrimSpace(requestToken) == "" {
		return nil, fmt.Errorf("%w: request token is empty", ErrInvalidArgument)
	}
	resp, err := s.API.Authenticate(ctx, requestToken)
	return s.report("authenticate", resp, err)
}

// -----------------------------------------------------------------------------

func (s *ControlService) Status(ctx context.Context) (*models.MAuthStatus, error) {
	return s.API.Status(ctx)
}

// -----------------------------------------------------------------------------

func (s *ControlService) AddToWatchlist(ctx context.Context, side string, strike float64) (*models.MControlResponse, error) {
	side = strings.ToUpper(side)
	if side != "CE" && side != "PE" {
		return nil, fmt.Errorf("%w: option side %q", ErrInvalidArgument, side)
	}
	resp, err := s.API.AddToWatchlist(ctx, side, strike)
	return s.report("add_to_watchlist", resp, err)
}

// -----------------------------------------------------------------------------

func (s *ControlService) Optimize(ctx context.Context) (*models.MOptimizeResponse, error) {
	resp, err := s.API.Optimize(ctx)
	if err != nil {
		s.Logger.Error("Optimize failed: %v", err)
		s.notify(models.LevelError, fmt.Sprintf("optimize: %v", err))
		return nil, err
	}
	level := models.LevelSuccess
	if resp.Status != "success" {
		level = models.LevelWarning
	}
	s.notify(level, fmt.Sprintf("Optimizer finished (%d report lines)", len(resp.Report)))
	return resp, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) report(command string, resp *models.MControlResponse, err error) (*models.MControlResponse, error) {
	if err != nil {
		s.Logger.Error("Command %s failed: %v", command, err)
		s.notify(models.LevelError, fmt.Sprintf("%s: %v", command, err))
		return nil, err
	}
	if resp == nil {
		resp = &models.MControlResponse{}
	}
	s.Logger.Info("Command %s: %s", command, resp.Message)
	if resp.Message != "" {
		s.notify(models.LevelSuccess, resp.Message)
	}
	return resp, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) notify(level, message string) {
	s.sched.Post(func() { s.store.PushNotification(level, "control", message) })
}
