package models

// -----------------------------------------------------------------------------
// Control API request / response bodies
// -----------------------------------------------------------------------------

type MStartRequest struct {
	Params        MStrategyParams `json:"params"`
	SelectedIndex string          `json:"selectedIndex"`
}

type MTokenRequest struct {
	RequestToken string `json:"request_token"`
}

type MWatchlistRequest struct {
	Side   string  `json:"side"`
	Strike float64 `json:"strike"`
}

// MControlResponse is the success shape of every control command.
type MControlResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	User    string `json:"user,omitempty"`
}

// Auth statuses reported by /api/status
const (
	AuthAuthenticated   = "authenticated"
	AuthUnauthenticated = "unauthenticated"
)

type MAuthStatus struct {
	Status   string `json:"status"`
	User     string `json:"user,omitempty"`
	LoginURL string `json:"login_url,omitempty"`
}

type MOptimizeResponse struct {
	Status string   `json:"status"`
	Report []string `json:"report"`
}
