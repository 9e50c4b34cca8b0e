package network

import (
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// LoginURL is the Kite Connect login page for apiKey, or "" without a key.
func LoginURL(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	return kiteconnect.New(apiKey).GetLoginURL()
}
