package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/BioHazard786/Questroom/internal/protocol"
)

// Default configuration values
const (
	DefaultDomain = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds application configuration
type Config struct {
	// Domain is the relay server host[:port]
	Domain string `env:"QUESTROOM_DOMAIN" envDefault:"localhost:8080"`

	// Insecure selects ws/http instead of wss/https. Loopback hosts are
	// always insecure.
	Insecure bool `env:"QUESTROOM_INSECURE"`

	Name        string `env:"QUESTROOM_NAME"`
	GameVersion string `env:"QUESTROOM_GAME_VERSION" envDefault:"1"`
	Capacity    int    `env:"QUESTROOM_CAPACITY" envDefault:"4"`
	Arena       string `env:"QUESTROOM_ARENA" envDefault:"arena"`
	TickHz      int    `env:"QUESTROOM_TICK_HZ" envDefault:"20"`

	// ICE servers for the direct pose mesh
	STUNServer string `env:"STUN_SERVER" envDefault:"stun:stun.l.google.com:19302"`
	TURNServer string `env:"TURN_SERVER"`
	TURNUser   string `env:"TURN_USERNAME"`
	TURNPass   string `env:"TURN_PASSWORD"`
	ForceRelay bool   `env:"QUESTROOM_FORCE_RELAY"`
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Name       string
	Capacity   int
	Insecure   bool
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables, including an optional .env file
// 3. Defaults - lowest priority
func Load(opts Options) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	override(&cfg.Domain, opts.Domain)
	override(&cfg.Name, opts.Name)
	override(&cfg.STUNServer, opts.STUNServer)
	override(&cfg.TURNServer, opts.TURNServer)
	override(&cfg.TURNUser, opts.TURNUser)
	override(&cfg.TURNPass, opts.TURNPass)
	if opts.Capacity != 0 {
		cfg.Capacity = opts.Capacity
	}
	cfg.Insecure = cfg.Insecure || opts.Insecure
	cfg.ForceRelay = cfg.ForceRelay || opts.ForceRelay

	if cfg.Name == "" {
		cfg.Name, _ = os.Hostname()
	}

	if cfg.Capacity < 1 || cfg.Capacity > protocol.MaxCapacity {
		return nil, fmt.Errorf("capacity must be in [1, %d], got %d", protocol.MaxCapacity, cfg.Capacity)
	}
	if cfg.TickHz < 1 || cfg.TickHz > 120 {
		return nil, fmt.Errorf("QUESTROOM_TICK_HZ must be in [1, 120], got %d", cfg.TickHz)
	}
	return &cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) secure() bool {
	if c.Insecure {
		return false
	}
	host := c.Domain
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return false
	}
	return true
}

// WebSocketURL is the relay's signaling endpoint.
func (c *Config) WebSocketURL() string {
	scheme := "wss"
	if !c.secure() {
		scheme = "ws"
	}
	return (&url.URL{Scheme: scheme, Host: c.Domain, Path: "/ws"}).String()
}

// RoomsURL lists the open rooms.
func (c *Config) RoomsURL() string {
	scheme := "https"
	if !c.secure() {
		scheme = "http"
	}
	return (&url.URL{Scheme: scheme, Host: c.Domain, Path: "/rooms"}).String()
}

// STUNServers returns STUN server URLs
func (c *Config) STUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// TURNServers returns TURN server URLs if configured
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("turn:%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// TURNCredentials returns TURN username and password
func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
