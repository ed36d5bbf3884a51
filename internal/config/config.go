package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/lunkwill/internal/protocol/handler"
	"github.com/danmuck/lunkwill/internal/protocol/message"
)

// RuleConfig declares the argument shape accepted for one message id.
type RuleConfig struct {
	ID       uint8 `toml:"id"`
	Variadic bool  `toml:"variadic"`
	Lengths  []int `toml:"lengths"`
}

// Shape converts the rule to a message shape.
func (r RuleConfig) Shape() message.Shape {
	if r.Variadic {
		return message.Variadic()
	}
	return message.Fixed(r.Lengths...)
}

// ServerConfig is the lunkwillctl runtime configuration.
type ServerConfig struct {
	Name               string
	ListenAddr         string
	AdminAddr          string
	CorsOrigins        []string
	InitialBufferBytes int
	MaxBufferBytes     int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	EchoIDs            []uint8
	Rules              []RuleConfig
	LibraryPath        string
	LogLevel           string
}

type fileConfig struct {
	Name               string       `toml:"name"`
	ListenAddr         string       `toml:"listen_addr"`
	AdminAddr          string       `toml:"admin_addr"`
	CorsOrigins        []string     `toml:"cors_origins"`
	InitialBufferBytes int          `toml:"initial_buffer_bytes"`
	MaxBufferBytes     int          `toml:"max_buffer_bytes"`
	ReadTimeout        string       `toml:"read_timeout"`
	WriteTimeout       string       `toml:"write_timeout"`
	EchoIDs            []int        `toml:"echo_ids"`
	Rules              []RuleConfig `toml:"rules"`
	LibraryPath        string       `toml:"library_path"`
	LogLevel           string       `toml:"log_level"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:               "lunkwill",
		ListenAddr:         "127.0.0.1:7400",
		AdminAddr:          "127.0.0.1:7401",
		InitialBufferBytes: handler.DefaultInitialCapacity,
		MaxBufferBytes:     handler.DefaultMaxCapacity,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		EchoIDs:            []uint8{1},
		LogLevel:           "info",
	}
}

// Limits returns the per-connection handler buffer limits.
func (c ServerConfig) Limits() handler.Limits {
	return handler.Limits{
		InitialCapacity: c.InitialBufferBytes,
		MaxCapacity:     c.MaxBufferBytes,
	}
}

// LoadServerConfig reads path and applies every key it defines on top of
// DefaultServerConfig.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ServerConfig{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("initial_buffer_bytes") {
		cfg.InitialBufferBytes = raw.InitialBufferBytes
	}
	if meta.IsDefined("max_buffer_bytes") {
		cfg.MaxBufferBytes = raw.MaxBufferBytes
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return ServerConfig{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return ServerConfig{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.WriteTimeout = d
	}
	if meta.IsDefined("echo_ids") {
		ids, err := messageIDs(raw.EchoIDs)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("parse echo_ids: %w", err)
		}
		cfg.EchoIDs = ids
	}
	if meta.IsDefined("rules") {
		cfg.Rules = raw.Rules
	}
	if meta.IsDefined("library_path") {
		cfg.LibraryPath = strings.TrimSpace(raw.LibraryPath)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("server config missing listen_addr")
	}
	if cfg.MaxBufferBytes <= 0 {
		return fmt.Errorf("max_buffer_bytes must be positive")
	}
	if cfg.InitialBufferBytes <= 0 || cfg.InitialBufferBytes > cfg.MaxBufferBytes {
		return fmt.Errorf("initial_buffer_bytes must be in (0, max_buffer_bytes]")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	seen := make(map[uint8]struct{}, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		if err := ValidateRule(rule); err != nil {
			return fmt.Errorf("rule[%d] invalid: %w", i, err)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("rule[%d] invalid: duplicate id %d", i, rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}
	return nil
}

func messageIDs(in []int) ([]uint8, error) {
	out := make([]uint8, 0, len(in))
	for _, id := range in {
		if id < 0 || id > 255 {
			return nil, fmt.Errorf("message id %d out of range", id)
		}
		out = append(out, uint8(id))
	}
	return out, nil
}

func ValidateRule(rule RuleConfig) error {
	if rule.Variadic && len(rule.Lengths) > 0 {
		return fmt.Errorf("variadic rule must not list lengths")
	}
	for _, l := range rule.Lengths {
		if l < message.AnyLength || l == 0 {
			return fmt.Errorf("length %d is not a positive length or %d", l, message.AnyLength)
		}
	}
	return nil
}
