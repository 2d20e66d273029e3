package bmauth

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines a public type used by bmauth APIs.
//
// Config instances are intended to be configured during initialization
// and then treated as immutable.
type Config struct {
	API       APIConfig
	Routes    RouteConfig
	Transport TransportConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the remote marketplace API.
type APIConfig struct {
	// BaseURL is the scheme://host[:port] of the API. Required.
	BaseURL string

	AuthenticatePath string
	RefreshPath      string
	LogoutPath       string

	// Timeout bounds each API call made by the SDK itself (login,
	// refresh, logout). It does not apply to requests the embedding
	// application sends through Client.HTTPClient.
	Timeout time.Duration
}

/*
====================================
ROUTE CONFIG
====================================
*/

// RouteConfig holds the navigation targets the login flow computes.
// The SDK does not navigate; it hands the route to the embedding app.
type RouteConfig struct {
	// PartnerHome is the landing route after a partner login.
	PartnerHome string
	// UserHome is the landing route after a consumer login.
	UserHome string
	// ReferralPathPrefix is prepended to a stored referral key to derive
	// the deep-link route consumed by the first consumer login.
	ReferralPathPrefix string
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig tunes the authenticating round tripper.
type TransportConfig struct {
	// RequestIDHeader names the correlation-id header stamped on every
	// outbound request when absent.
	RequestIDHeader string
	// EagerRefresh starts a refresh episode before sending when the
	// access token's exp claim is already in the past, instead of
	// waiting for the round trip to come back 401.
	EagerRefresh bool
	// ExpiryLeeway widens the EagerRefresh check so a token about to
	// expire mid-flight is refreshed up front.
	ExpiryLeeway time.Duration
	// MaxReplayBodyBytes caps how much of a 401 response body is
	// buffered so the original response can be returned if the refresh
	// fails.
	MaxReplayBodyBytes int64
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			AuthenticatePath: "/api/User/authenticate",
			RefreshPath:      "/auth/refresh",
			LogoutPath:       "/api/auth/logout",
			Timeout:          15 * time.Second,
		},
		Routes: RouteConfig{
			PartnerHome:        "/partner/dashboard",
			UserHome:           "/",
			ReferralPathPrefix: "/recommendation/",
		},
		Transport: TransportConfig{
			RequestIDHeader:    "X-Request-ID",
			EagerRefresh:       false,
			ExpiryLeeway:       10 * time.Second,
			MaxReplayBodyBytes: 64 << 10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values Build cannot work with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API.BaseURL required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("API.BaseURL must be an absolute URL")
	}
	if c.API.AuthenticatePath == "" || c.API.RefreshPath == "" || c.API.LogoutPath == "" {
		return errors.New("API paths must not be empty")
	}
	if c.API.Timeout < 0 {
		return errors.New("API.Timeout must not be negative")
	}
	if c.Transport.ExpiryLeeway < 0 {
		return errors.New("Transport.ExpiryLeeway must not be negative")
	}
	if c.Transport.MaxReplayBodyBytes <= 0 {
		return errors.New("Transport.MaxReplayBodyBytes must be positive")
	}
	return nil
}
