package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danderson/slip"
	"github.com/rs/zerolog"
)

// envLogLevel overrides the configured log level when set.
const envLogLevel = "SLIP_LOG_LEVEL"

type fileConfig struct {
	Network    string `toml:"network"`
	Address    string `toml:"address"`
	LeadingEnd bool   `toml:"leading_end"`
	LogLevel   string `toml:"log_level"`
}

// serverConfig is the configuration of the serve command.
type serverConfig struct {
	Network  string
	Address  string
	Options  slip.Options
	LogLevel string
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Network:  "tcp",
		Address:  "127.0.0.1:0",
		LogLevel: "info",
	}
}

func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serverConfig{}, fmt.Errorf("load server config: %w", err)
	}
	if und := meta.Undecoded(); len(und) > 0 {
		return serverConfig{}, fmt.Errorf("load server config: unknown keys %v", und)
	}

	if meta.IsDefined("network") {
		cfg.Network = strings.TrimSpace(raw.Network)
	}
	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("leading_end") {
		cfg.Options.OmitLeadingEnd = !raw.LeadingEnd
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if cfg.Address == "" {
		return serverConfig{}, fmt.Errorf("load server config: empty address")
	}
	return cfg, nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return zerolog.InfoLevel, nil
	case "off", "none":
		return zerolog.Disabled, nil
	}
	lvl, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", raw)
	}
	return lvl, nil
}

// newLogger returns the console logger for the command, at the given
// level unless overridden by $SLIP_LOG_LEVEL.
func newLogger(level string) (zerolog.Logger, error) {
	if env := os.Getenv(envLogLevel); env != "" {
		level = env
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}
	out := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
