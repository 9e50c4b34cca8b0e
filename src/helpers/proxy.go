package helpers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// -----------------------------------------------------------------------------

// ProxyFunc resolves the outbound proxy for both the REST client and the
// stream dialer. An empty setting defers to the environment.
func ProxyFunc(proxyStr string) (func(*http.Request) (*url.URL, error), error) {
	if strings.TrimSpace(proxyStr) == "" {
		return http.ProxyFromEnvironment, nil
	}
	if !ValidateProxy(proxyStr) {
		return nil, NewConfigurationError(fmt.Sprintf("invalid proxy %q", proxyStr), nil)
	}
	u, err := url.Parse(FormatProxy(proxyStr))
	if err != nil || u.Host == "" {
		return nil, NewConfigurationError(fmt.Sprintf("invalid proxy %q", proxyStr), err)
	}
	return http.ProxyURL(u), nil
}

// -----------------------------------------------------------------------------

// ValidateProxy checks if a proxy string is roughly valid.
func ValidateProxy(proxyStr string) bool {
	u, err := url.Parse(FormatProxy(proxyStr))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "socks5")
}

// -----------------------------------------------------------------------------

// FormatProxy ensures the proxy has a scheme.
func FormatProxy(proxyStr string) string {
	proxyStr = strings.TrimSpace(proxyStr)
	if !strings.Contains(proxyStr, "://") {
		return "http://" + proxyStr
	}
	return proxyStr
}
