package interfaces

import (
	"context"

	"bot-mirror/src/models"
)

// -----------------------------------------------------------------------------
// ITradeHistorySource serves the authoritative trade snapshots.
// -----------------------------------------------------------------------------

type ITradeHistorySource interface {
	TodayTrades(ctx context.Context) ([]models.MTradeRecord, error)
	AllTimeTrades(ctx context.Context) ([]models.MTradeRecord, error)
}

// -----------------------------------------------------------------------------
// IControlAPI is the request/response surface of the remote bot.
// -----------------------------------------------------------------------------

type IControlAPI interface {
	ITradeHistorySource

	// -----------------------------------------------------------------------------

	Status(ctx context.Context) (*models.MAuthStatus, error)
	Authenticate(ctx context.Context, requestToken string) (*models.MControlResponse, error)

	// -----------------------------------------------------------------------------

	Start(ctx context.Context, params models.MStrategyParams, selectedIndex string) (*models.MControlResponse, error)
	Stop(ctx context.Context) (*models.MControlResponse, error)
	Pause(ctx context.Context) (*models.MControlResponse, error)
	Resume(ctx context.Context) (*models.MControlResponse, error)
	ManualExit(ctx context.Context) (*models.MControlResponse, error)
	UpdateParams(ctx context.Context, params models.MStrategyParams) (*models.MControlResponse, error)

	// -----------------------------------------------------------------------------

	Optimize(ctx context.Context) (*models.MOptimizeResponse, error)
	AddToWatchlist(ctx context.Context, side string, strike float64) (*models.MControlResponse, error)
}
