package main

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	socket "github.com/Zereker/tcpsocket"
)

const (
	modeServer = "server"
	modeClient = "client"
)

type config struct {
	Mode           string
	Host           string
	Port           uint16
	Backlog        int
	MaxMessageSize int
	DrainOversized bool
	LogLevel       string
}

func defaultConfig() config {
	return config{
		Mode:           modeServer,
		Host:           "127.0.0.1",
		Port:           12345,
		Backlog:        128,
		MaxMessageSize: socket.MaxPacketSize,
		LogLevel:       "info",
	}
}

type fileConfig struct {
	Mode           string `toml:"mode"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Backlog        int    `toml:"backlog"`
	MaxMessageSize int    `toml:"max_message_size"`
	DrainOversized bool   `toml:"drain_oversized"`
	LogLevel       string `toml:"log_level"`
}

// loadConfig overlays the keys defined in a TOML file on cfg.
func loadConfig(path string, cfg config) (config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(err, "load config")
	}

	if meta.IsDefined("mode") {
		cfg.Mode = strings.ToLower(strings.TrimSpace(raw.Mode))
	}
	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		if raw.Port < 0 || raw.Port > 65535 {
			return config{}, errors.Errorf("port %d out of range", raw.Port)
		}
		cfg.Port = uint16(raw.Port)
	}
	if meta.IsDefined("backlog") {
		cfg.Backlog = raw.Backlog
	}
	if meta.IsDefined("max_message_size") {
		cfg.MaxMessageSize = raw.MaxMessageSize
	}
	if meta.IsDefined("drain_oversized") {
		cfg.DrainOversized = raw.DrainOversized
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}

	return cfg, nil
}

// validate reports every problem with cfg at once.
func (c config) validate() error {
	var errs error

	if c.Mode != modeServer && c.Mode != modeClient {
		errs = multierror.Append(errs, errors.Errorf("mode must be %q or %q, got %q", modeServer, modeClient, c.Mode))
	}
	if c.Host == "" {
		errs = multierror.Append(errs, errors.New("host is empty"))
	}
	if c.Mode == modeClient && c.Port == 0 {
		errs = multierror.Append(errs, errors.New("client needs a port"))
	}
	if c.Backlog <= 0 {
		errs = multierror.Append(errs, errors.Errorf("backlog must be positive, got %d", c.Backlog))
	}
	if c.MaxMessageSize <= 0 || c.MaxMessageSize > socket.MaxPacketSize {
		errs = multierror.Append(errs, errors.Errorf("max_message_size must be in (0, %d], got %d",
			socket.MaxPacketSize, c.MaxMessageSize))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, errors.Errorf("unknown log_level %q", c.LogLevel))
	}

	return errs
}
