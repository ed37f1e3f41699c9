// Package gatewayapp wires the gateway's components into app.Run's
// lifecycle: config.go / deps.go / hooks.go under one internal package.
package gatewayapp

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linkedingateway/gateway/config"
	"github.com/linkedingateway/gateway/gateway/gatewayconfig"
)

// Config is the gateway's app-specific configuration: gatewayconfig.Values
// plus the parsed-duration/derived fields handlers actually consume.
type Config struct {
	gatewayconfig.Values

	PingIntervalDuration        time.Duration
	PongTimeoutDuration         time.Duration
	ProxyTimeoutDuration        time.Duration
	BackpressureTimeoutDuration time.Duration
	CredentialCacheTTLDuration  time.Duration
}

// LoadConfig loads WAFFLE core config plus the gateway's app config.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, Config, error) {
	coreCfg, raw, err := config.LoadWithAppConfig(logger, gatewayconfig.EnvPrefix, gatewayconfig.AppKeys())
	if err != nil {
		return nil, Config{}, err
	}

	values := gatewayconfig.FromValues(raw)
	cfg := Config{Values: values}

	cfg.PingIntervalDuration, err = parseDurationSetting(gatewayconfig.KeyPingInterval, values.PingInterval)
	if err != nil {
		return nil, Config{}, err
	}
	cfg.PongTimeoutDuration, err = parseDurationSetting(gatewayconfig.KeyPongTimeout, values.PongTimeout)
	if err != nil {
		return nil, Config{}, err
	}
	cfg.ProxyTimeoutDuration, err = parseDurationSetting(gatewayconfig.KeyProxyTimeout, values.ProxyTimeout)
	if err != nil {
		return nil, Config{}, err
	}
	cfg.BackpressureTimeoutDuration, err = parseDurationSetting(gatewayconfig.KeyBackpressureTimeout, values.BackpressureTimeout)
	if err != nil {
		return nil, Config{}, err
	}
	cfg.CredentialCacheTTLDuration, err = parseDurationSetting(gatewayconfig.KeyCredentialCacheTTL, values.CredentialCacheTTL)
	if err != nil {
		return nil, Config{}, err
	}

	return coreCfg, cfg, nil
}

// ValidateConfig runs the gateway's own Values.Validate on top of whatever
// WAFFLE's core config validation already did.
func ValidateConfig(core *config.CoreConfig, appCfg Config, logger *zap.Logger) error {
	return appCfg.Validate()
}

func parseDurationSetting(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("gatewayapp: invalid duration for %s (%q): %w", key, raw, err)
	}
	return d, nil
}
