package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

// Transport modes
const (
	ModeStdio = "stdio"
	ModeHTTP  = "http"
)

// envPrefix namespaces every environment variable read by the bridge
const envPrefix = "OWBRIDGE"

// BridgeConfig holds all bridge configuration
type BridgeConfig struct {
	// Transport
	Mode string `mapstructure:"mode"`
	Port string `mapstructure:"port"`

	// Platform selects the ad position table: android or ios
	Platform string `mapstructure:"platform"`

	// Auction
	AuctionURL     string        `mapstructure:"auction_url"`
	AuctionTimeout time.Duration `mapstructure:"auction_timeout"`

	// Profile storage
	DatabaseURL     string        `mapstructure:"database_url"`
	RedisURL        string        `mapstructure:"redis_url"`
	ProfileCacheTTL time.Duration `mapstructure:"profile_cache_ttl"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogOutput string `mapstructure:"log_output"`

	// Metrics
	MetricsNamespace string `mapstructure:"metrics_namespace"`

	// EventBacklog is how many outward events the HTTP transport keeps
	// while no event stream subscriber is connected
	EventBacklog int `mapstructure:"event_backlog"`

	// ConfigFile is the file the configuration was read from, if any
	ConfigFile string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeStdio)
	v.SetDefault("port", "8090")
	v.SetDefault("platform", "android")
	v.SetDefault("auction_url", config.DefaultAuctionURL)
	v.SetDefault("auction_timeout", config.DefaultNetworkTimeout)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("profile_cache_ttl", config.ProfileCacheTTL)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_output", "")
	v.SetDefault("metrics_namespace", "owbridge")
	v.SetDefault("event_backlog", config.OutboxSize)
}

// ParseConfig reads configuration from, in increasing priority: defaults,
// an optional YAML file, OWBRIDGE_* environment variables and flags.
func ParseConfig(args []string) (*BridgeConfig, error) {
	fs := flag.NewFlagSet("owbridge", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to a YAML config file (env OWBRIDGE_CONFIG)")
	mode := fs.String("mode", "", "Transport: stdio or http")
	port := fs.String("port", "", "HTTP transport port")
	platform := fs.String("platform", "", "Ad position table: android or ios")
	auctionURL := fs.String("auction-url", "", "OpenWrap auction endpoint")
	auctionTimeout := fs.Duration("auction-timeout", 0, "Default auction timeout")
	logLevel := fs.String("log-level", "", "Log level: trace, debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if *configFile == "" {
		*configFile = v.GetString("config")
	}
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", *configFile, err)
		}
	}

	// Only flags given on the command line override lower layers
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			v.Set("mode", *mode)
		case "port":
			v.Set("port", *port)
		case "platform":
			v.Set("platform", *platform)
		case "auction-url":
			v.Set("auction_url", *auctionURL)
		case "auction-timeout":
			v.Set("auction_timeout", *auctionTimeout)
		case "log-level":
			v.Set("log_level", *logLevel)
		}
	})

	var cfg BridgeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigFile = *configFile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the bridge cannot run with
func (c *BridgeConfig) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeStdio, ModeHTTP:
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q, must be %q or %q", c.Mode, ModeStdio, ModeHTTP))
	}
	if _, err := openwrap.PositionTableFor(c.Platform); err != nil {
		errs = append(errs, err)
	}
	if c.Mode == ModeHTTP && c.Port == "" {
		errs = append(errs, errors.New("port is required in http mode"))
	}
	if c.AuctionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("auction timeout must be positive, got %v", c.AuctionTimeout))
	}
	return errors.Join(errs...)
}

// LogOutputFor returns where logs go. The stdio transport owns stdout, so
// logging there is redirected to stderr.
func (c *BridgeConfig) LogOutputFor() string {
	out := c.LogOutput
	if out == "" {
		out = "stdout"
	}
	if c.Mode == ModeStdio && out == "stdout" {
		return "stderr"
	}
	return out
}
