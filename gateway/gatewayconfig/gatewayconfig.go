// Package gatewayconfig defines the gateway-specific settings layered on top
// of config.CoreConfig via the AppKey/AppConfigValues mechanism: LinkedIn
// query-ID overrides, WebSocket timing knobs, credential storage DSNs, and
// the JWT/OAuth secrets the REST surface and WS handshake need.
package gatewayconfig

import (
	"fmt"
	"strings"

	"github.com/linkedingateway/gateway/config"
)

// Key names, reused for both config.AppKey.Name and struct field lookups.
const (
	KeyDatabaseURL             = "database_url"
	KeyRedisURL                = "redis_url"
	KeyJWTSecretKey            = "jwt_secret_key"
	KeyPublicURL               = "public_url"
	KeyLinkedInClientID        = "linkedin_client_id"
	KeyLinkedInClientSecret    = "linkedin_client_secret"
	KeyPingInterval            = "ping_interval"
	KeyPongTimeout             = "pong_timeout"
	KeyProxyTimeout            = "proxy_timeout"
	KeyBackpressureTimeout     = "backpressure_timeout"
	KeyDefaultPageSize         = "default_page_size"
	KeyCredentialCacheTTL      = "credential_cache_ttl"
	KeyQueryIDOverrides        = "query_id_overrides" // JSON object string, e.g. {"post_comments":"voyagerSocialDashComments.abcdef"}
	KeyServerEdition           = "server_edition"
	KeyServerName              = "server_name"
	KeyServerChannel           = "server_channel"
	KeyRateLimitRPS            = "rate_limit_rps"
	KeyRateLimitBurst          = "rate_limit_burst"
	KeyCredentialEncryptionKey = "credential_encryption_key"
	KeyMetricsKey              = "metrics_key"
)

// AppKeys returns the gateway's AppKey set for registration with
// config.LoadWithAppConfig.
func AppKeys() []config.AppKey {
	return []config.AppKey{
		{Name: KeyDatabaseURL, Default: "postgres://localhost:5432/gateway?sslmode=disable", Desc: "Postgres DSN for the credential registry"},
		{Name: KeyRedisURL, Default: "", Desc: "Redis URL for the credential read-through cache (empty disables caching)"},
		{Name: KeyJWTSecretKey, Default: "", Desc: "HMAC secret used to verify WebSocket handshake session tokens"},
		{Name: KeyPublicURL, Default: "", Desc: "HTTPS base URL this gateway is reachable at"},
		{Name: KeyLinkedInClientID, Default: "", Desc: "LinkedIn OAuth client id (config-status reporting only)"},
		{Name: KeyLinkedInClientSecret, Default: "", Desc: "LinkedIn OAuth client secret (config-status reporting only)"},
		{Name: KeyPingInterval, Default: "30s", Desc: "WebSocket ping interval"},
		{Name: KeyPongTimeout, Default: "5s", Desc: "WebSocket pong wait timeout"},
		{Name: KeyProxyTimeout, Default: "60s", Desc: "Per-request timeout waiting for a proxied response"},
		{Name: KeyBackpressureTimeout, Default: "10s", Desc: "Timeout writing a proxy_http_request frame to a slow client"},
		{Name: KeyDefaultPageSize, Default: 10, Desc: "Default page size when a fetch request doesn't specify one"},
		{Name: KeyCredentialCacheTTL, Default: "60s", Desc: "TTL for cached credential reads"},
		{Name: KeyQueryIDOverrides, Default: "", Desc: "JSON object overriding LinkedIn GraphQL query IDs by endpoint kind"},
		{Name: KeyServerEdition, Default: "core", Desc: "Reported in GET /api/v1/server/info"},
		{Name: KeyServerName, Default: "linkedin-gateway", Desc: "Reported in GET /api/v1/server/info"},
		{Name: KeyServerChannel, Default: "stable", Desc: "Reported in GET /api/v1/server/info"},
		{Name: KeyRateLimitRPS, Default: 20, Desc: "Requests per second allowed per API key/IP on the Public REST Surface"},
		{Name: KeyRateLimitBurst, Default: 40, Desc: "Burst size for the Public REST Surface rate limiter"},
		{Name: KeyCredentialEncryptionKey, Default: "", Desc: "Base64 AES-128/192/256 key encrypting stored CSRF tokens, cookies, and Gemini blobs at rest (empty disables encryption)"},
		{Name: KeyMetricsKey, Default: "", Desc: "Static API key required to read GET /metrics (empty disables auth, for trusted-network deployments)"},
	}
}

// EnvPrefix is the prefix AppConfigValues environment variables are bound
// under (e.g. GATEWAY_JWT_SECRET_KEY).
const EnvPrefix = "GATEWAY"

// Values is a typed view over the loaded AppConfigValues.
type Values struct {
	DatabaseURL          string
	RedisURL             string
	JWTSecretKey         string
	PublicURL            string
	LinkedInClientID     string
	LinkedInClientSecret string

	PingInterval        string
	PongTimeout         string
	ProxyTimeout        string
	BackpressureTimeout string

	DefaultPageSize    int
	CredentialCacheTTL string
	QueryIDOverrides   string

	ServerEdition string
	ServerName    string
	ServerChannel string

	RateLimitRPS   int
	RateLimitBurst int

	CredentialEncryptionKey string
	MetricsKey              string
}

// FromValues projects the loaded AppConfigValues into a typed Values struct.
func FromValues(v config.AppConfigValues) Values {
	return Values{
		DatabaseURL:             v.String(KeyDatabaseURL),
		RedisURL:                v.String(KeyRedisURL),
		JWTSecretKey:            v.String(KeyJWTSecretKey),
		PublicURL:               v.String(KeyPublicURL),
		LinkedInClientID:        v.String(KeyLinkedInClientID),
		LinkedInClientSecret:    v.String(KeyLinkedInClientSecret),
		PingInterval:            v.String(KeyPingInterval),
		PongTimeout:             v.String(KeyPongTimeout),
		ProxyTimeout:            v.String(KeyProxyTimeout),
		BackpressureTimeout:     v.String(KeyBackpressureTimeout),
		DefaultPageSize:         v.Int(KeyDefaultPageSize),
		CredentialCacheTTL:      v.String(KeyCredentialCacheTTL),
		QueryIDOverrides:        v.String(KeyQueryIDOverrides),
		ServerEdition:           v.String(KeyServerEdition),
		ServerName:              v.String(KeyServerName),
		ServerChannel:           v.String(KeyServerChannel),
		RateLimitRPS:            v.Int(KeyRateLimitRPS),
		RateLimitBurst:          v.Int(KeyRateLimitBurst),
		CredentialEncryptionKey: v.String(KeyCredentialEncryptionKey),
		MetricsKey:              v.String(KeyMetricsKey),
	}
}

// IsLinkedInOAuthConfigured reports whether both LinkedIn OAuth credentials
// are present, the predicate GET /auth/linkedin/config-status reports.
func (v Values) IsLinkedInOAuthConfigured() bool {
	return strings.TrimSpace(v.LinkedInClientID) != "" && strings.TrimSpace(v.LinkedInClientSecret) != ""
}

// Validate checks the settings that must be non-empty for the gateway to
// start safely.
func (v Values) Validate() error {
	var missing []string
	if strings.TrimSpace(v.JWTSecretKey) == "" {
		missing = append(missing, KeyJWTSecretKey)
	}
	if strings.TrimSpace(v.DatabaseURL) == "" {
		missing = append(missing, KeyDatabaseURL)
	}
	if len(missing) > 0 {
		return fmt.Errorf("gatewayconfig: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
