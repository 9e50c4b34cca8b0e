package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bot-mirror/src/helpers"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/trace"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

// Control API paths
const (
	PathStatus        = "/api/status"
	PathAuthenticate  = "/api/authenticate"
	PathStart         = "/api/start"
	PathStop          = "/api/stop"
	PathPause         = "/api/pause"
	PathResume        = "/api/resume"
	PathManualExit    = "/api/manual_exit"
	PathUpdateParams  = "/api/update_strategy_params"
	PathOptimize      = "/api/optimize"
	PathWatchlist     = "/api/add_to_watchlist"
	PathTodayTrades   = "/api/trade_history"
	PathAllTimeTrades = "/api/trade_history_all"
)

const maxErrorBody = 4096

// -----------------------------------------------------------------------------
// ControlClient talks to the bot's request/response API. Commands are sent
// once; history reads are retried with backoff.
// -----------------------------------------------------------------------------

type ControlClient struct {
	Config  *models.MConfig
	Client  *http.Client
	Logger  *logger.Logger
	baseURL *url.URL
}

// -----------------------------------------------------------------------------

func NewControlClient(cfg *models.MConfig, log *logger.Logger) (*ControlClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Remote.APIURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, helpers.NewConfigurationError(fmt.Sprintf("invalid remote api_url %q", cfg.Remote.APIURL), err)
	}
	if log == nil {
		log = logger.NewNop("ControlClient")
	}

	timeout := time.Duration(cfg.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	proxy, err := helpers.ProxyFunc(cfg.Network.Proxy)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy

	return &ControlClient{
		Config:  cfg,
		Client:  &http.Client{Timeout: timeout, Transport: transport},
		Logger:  log,
		baseURL: base,
	}, nil
}

// -----------------------------------------------------------------------------
// Status & authentication
// -----------------------------------------------------------------------------

// Status reports whether the bot holds a broker session. An unauthenticated
// answer without a login URL gets one built from the configured API key.
func (nc *ControlClient) Status(ctx context.Context) (*models.MAuthStatus, error) {
	var status models.MAuthStatus
	if err := nc.doRequest(ctx, http.MethodGet, PathStatus, nil, &status); err != nil {
		return nil, err
	}
	if status.Status != models.AuthAuthenticated && status.LoginURL == "" {
		status.LoginURL = LoginURL(nc.Config.Kite.APIKey)
	}
	return &status, nil
}

// -----------------------------------------------------------------------------

func (nc *ControlClient) Authenticate(ctx context.Context, requestToken string) (*models.MControlResponse, error) {
	return nc.command(ctx, PathAuthenticate, models.MTokenRequest{RequestToken: requestToken})
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

func (nc *ControlClient) Start(ctx context.Context, params models.MStrategyParams, selectedIndex string) (*models.MControlResponse, error) {
	return nc.command(ctx, PathStart, models.MStartRequest{Params: params, SelectedIndex: selectedIndex})
}

func (nc *ControlClient) Stop(ctx context.Context) (*models.MControlResponse, error) {
	return nc.command(ctx, PathStop, nil)
}

func (nc *ControlClient) Pause(ctx context.Context) (*models.MControlResponse, error) {
	return nc.command(ctx, PathPause, nil)
}

func (nc *ControlClient) Resume(ctx context.Context) (*models.MControlResponse, error) {
	return nc.command(ctx, PathResume, nil)
}

func (nc *ControlClient) ManualExit(ctx context.Context) (*models.MControlResponse, error) {
	return nc.command(ctx, PathManualExit, nil)
}

func (nc *ControlClient) UpdateParams(ctx context.Context, params models.MStrategyParams) (*models.MControlResponse, error) {
	return nc.command(ctx, PathUpdateParams, params)
}

func (nc *ControlClient) AddToWatchlist(ctx context.Context, side string, strike float64) (*models.MControlResponse, error) {
	return nc.command(ctx, PathWatchlist, models.MWatchlistRequest{Side: side, Strike: strike})
}

// -----------------------------------------------------------------------------

// Optimize runs the bot's parameter optimizer. An error status in the body is
// still a well-formed answer; the report explains it.
func (nc *ControlClient) Optimize(ctx context.Context) (*models.MOptimizeResponse, error) {
	var resp models.MOptimizeResponse
	if err := nc.doRequest(ctx, http.MethodPost, PathOptimize, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// -----------------------------------------------------------------------------
// Trade history
// -----------------------------------------------------------------------------

func (nc *ControlClient) TodayTrades(ctx context.Context) ([]models.MTradeRecord, error) {
	return nc.fetchTrades(ctx, PathTodayTrades)
}

func (nc *ControlClient) AllTimeTrades(ctx context.Context) ([]models.MTradeRecord, error) {
	return nc.fetchTrades(ctx, PathAllTimeTrades)
}

// -----------------------------------------------------------------------------

// fetchTrades accepts either a bare array or {"trades": [...]}.
func (nc *ControlClient) fetchTrades(ctx context.Context, path string) ([]models.MTradeRecord, error) {
	body, err := nc.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		list = list.Get("trades")
	}
	if !list.IsArray() {
		return nil, helpers.NewProtocolError(fmt.Sprintf("unexpected %s response shape", path), nil)
	}

	var trades []models.MTradeRecord
	if err := json.Unmarshal([]byte(list.Raw), &trades); err != nil {
		return nil, helpers.NewProtocolError(fmt.Sprintf("decode %s", path), err)
	}
	return trades, nil
}

// -----------------------------------------------------------------------------
// Transport
// -----------------------------------------------------------------------------

// Get performs a GET request with retries on transport failures and 5xx/429.
func (nc *ControlClient) Get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Add(k, v)
		}
		path = path + "?" + q.Encode()
	}

	return helpers.RetryWithBackoff(ctx, nc.Logger, "GET "+path, nc.Config.Network.MaxRetries, 500*time.Millisecond, retryable,
		func() ([]byte, error) {
			var raw json.RawMessage
			if err := nc.doRequest(ctx, http.MethodGet, path, nil, &raw); err != nil {
				return nil, err
			}
			return raw, nil
		})
}

// -----------------------------------------------------------------------------

func (nc *ControlClient) command(ctx context.Context, path string, payload interface{}) (*models.MControlResponse, error) {
	var resp models.MControlResponse
	if err := nc.doRequest(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// -----------------------------------------------------------------------------

func (nc *ControlClient) doRequest(ctx context.Context, method, path string, payload interface{}, out interface{}) (err error) {
	ctx, span := trace.StartSpan(ctx, "control "+method+" "+path)
	defer func() { trace.EndSpan(span, err) }()

	endpoint := nc.baseURL.String() + path

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request for %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil || method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if ua := nc.Config.Network.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := nc.Client.Do(req)
	if err != nil {
		return helpers.NewTransportError(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return helpers.NewRequestError(method+" "+path, resp.StatusCode, extractDetail(data, resp.Status))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return helpers.NewProtocolError(fmt.Sprintf("decode %s response", path), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// extractDetail pulls {detail} out of a failure body. Structured details are
// kept as their JSON text.
func extractDetail(body []byte, status string) string {
	if gjson.ValidBytes(body) {
		detail := gjson.GetBytes(body, "detail")
		switch {
		case detail.Type == gjson.String:
			return detail.Str
		case detail.Exists():
			if msg := detail.Get("message"); msg.Type == gjson.String {
				return msg.Str
			}
			return detail.Raw
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return status
}

// -----------------------------------------------------------------------------

func retryable(err error) bool {
	var reqErr *helpers.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable()
	}
	var protoErr *helpers.ProtocolError
	return !errors.As(err, &protoErr) && !errors.Is(err, context.Canceled)
}
