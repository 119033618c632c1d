// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package config provides the relay's opinionated Viper/pflag bootstrap.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const (
	// DefaultHTTPAddress is the bind address of the relay's WebSocket and
	// admin HTTP surface.
	DefaultHTTPAddress = ":8080"

	// DefaultDevicePath is the path devices connect to.
	DefaultDevicePath = "/api/v1/device"

	// DefaultClientPath is the path end-user clients connect to.
	DefaultClientPath = "/api/v1/connect"

	// DefaultAdminPrefix is the path prefix for the admin surface.
	DefaultAdminPrefix = "/admin"

	// DefaultMetricsPath is the path the Prometheus handler is mounted at.
	DefaultMetricsPath = "/metrics"

	// FileFlagName is the command-line flag for an alternate configuration
	// file for Viper to hunt for.
	FileFlagName = "file"

	// FileFlagShorthand is the shorthand for FileFlagName.
	FileFlagShorthand = "f"
)

// Config is the relay's unmarshalled configuration tree.
type Config struct {
	ApplicationName string `mapstructure:"-"`

	HTTP struct {
		Address      string        `mapstructure:"address"`
		DevicePath   string        `mapstructure:"devicePath"`
		ClientPath   string        `mapstructure:"clientPath"`
		AdminPrefix  string        `mapstructure:"adminPrefix"`
		MetricsPath  string        `mapstructure:"metricsPath"`
		ReadTimeout  time.Duration `mapstructure:"readTimeout"`
		WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	} `mapstructure:"http"`

	Device struct {
		PingPeriod          time.Duration `mapstructure:"pingPeriod"`
		MissedPingThreshold int32         `mapstructure:"missedPingThreshold"`
		ReconcilePeriod     time.Duration `mapstructure:"reconcilePeriod"`
		QueueSize           int           `mapstructure:"queueSize"`
	} `mapstructure:"device"`

	Client struct {
		PingPeriod          time.Duration `mapstructure:"pingPeriod"`
		MissedPongThreshold int32         `mapstructure:"missedPongThreshold"`
		QueueCapacity       int           `mapstructure:"queueCapacity"`
		QueueTTL            time.Duration `mapstructure:"queueTTL"`
		TokenExpiryWarning  time.Duration `mapstructure:"tokenExpiryWarning"`
		QueueSize           int           `mapstructure:"queueSize"`
	} `mapstructure:"client"`

	Zap sallust.Config `mapstructure:"zap"`
}

// ConfigureFlagSet adds the relay's standard command-line flags to f.
func ConfigureFlagSet(applicationName string, f *pflag.FlagSet) {
	f.StringP(FileFlagName, FileFlagShorthand, applicationName, "base name of the configuration file")
}

// ConfigureViper prepares v with the relay's search paths, environment
// binding, and defaults. The flag set is optional; if supplied and it
// carries a FileFlagName flag, that flag's value overrides the config
// name to search for.
func ConfigureViper(applicationName string, f *pflag.FlagSet, v *viper.Viper) error {
	v.AddConfigPath(fmt.Sprintf("/etc/%s", applicationName))
	v.AddConfigPath(fmt.Sprintf("$HOME/.%s", applicationName))
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(applicationName)
	v.AutomaticEnv()

	v.SetDefault("http.address", DefaultHTTPAddress)
	v.SetDefault("http.devicePath", DefaultDevicePath)
	v.SetDefault("http.clientPath", DefaultClientPath)
	v.SetDefault("http.adminPrefix", DefaultAdminPrefix)
	v.SetDefault("http.metricsPath", DefaultMetricsPath)
	v.SetDefault("http.readTimeout", 10*time.Second)
	v.SetDefault("http.writeTimeout", 10*time.Second)

	v.SetDefault("device.pingPeriod", 10*time.Second)
	v.SetDefault("device.missedPingThreshold", 2)
	v.SetDefault("device.reconcilePeriod", 60*time.Second)
	v.SetDefault("device.queueSize", 100)

	v.SetDefault("client.pingPeriod", 30*time.Second)
	v.SetDefault("client.missedPongThreshold", 2)
	v.SetDefault("client.queueCapacity", 50)
	v.SetDefault("client.queueTTL", 10*time.Second)
	v.SetDefault("client.tokenExpiryWarning", 5*time.Minute)
	v.SetDefault("client.queueSize", 100)

	configName := applicationName
	if f != nil {
		if fileFlag := f.Lookup(FileFlagName); fileFlag != nil {
			configName = fileFlag.Value.String()
		}

		if err := v.BindPFlags(f); err != nil {
			return err
		}
	}

	v.SetConfigName(configName)
	return nil
}

// New parses arguments with the relay's standard flag set, configures v
// against applicationName, reads in whatever configuration file is found
// (a missing file is tolerated; a malformed one is not), and unmarshals
// the result into a Config.
func New(applicationName string, arguments []string, f *pflag.FlagSet, v *viper.Viper) (*Config, error) {
	if f != nil {
		ConfigureFlagSet(applicationName, f)
		if err := f.Parse(arguments); err != nil {
			return nil, err
		}
	}

	if err := ConfigureViper(applicationName, f, v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{ApplicationName: applicationName}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewLogger builds the relay's logger from the config's zap section, the
// same way server.Initialize built its logger from an unmarshalled
// sallust.Config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	return cfg.Zap.Build()
}

// ToDuration is a small cast helper kept for handlers that need to coerce
// a raw query or config value into a time.Duration.
func ToDuration(v interface{}) (time.Duration, error) {
	return cast.ToDurationE(v)
}
