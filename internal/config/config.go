package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Printer PrinterConfig `yaml:"printer"`
	Ticket  TicketConfig  `yaml:"ticket"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// ReadTimeout bounds how long a client may take to send its request.
	// Zero waits forever.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	PrintTimeout time.Duration `yaml:"print_timeout"`
	Concurrent   bool          `yaml:"concurrent"`
	// Matching is "legacy" (substring request-line matching) or "strict".
	Matching      string `yaml:"matching"`
	SurfaceErrors bool   `yaml:"surface_errors"`
}

type PrinterConfig struct {
	DPI          int            `yaml:"dpi"`
	WidthMM      float64        `yaml:"width_mm"`
	CharsPerLine int            `yaml:"chars_per_line"`
	Encoding     string         `yaml:"encoding"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	Targets      []TargetConfig `yaml:"targets"`
}

type TargetConfig struct {
	Type    string `yaml:"type"`    // usb or tcp
	Address string `yaml:"address"` // device path or host:port
}

type TicketConfig struct {
	Facility        string `yaml:"facility"`
	Brand           string `yaml:"brand"`
	LogoPath        string `yaml:"logo_path"`
	NormalizeValues bool   `yaml:"normalize_values"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         9080,
			ReadTimeout:  30 * time.Second,
			PrintTimeout: 30 * time.Second,
			Matching:     "legacy",
		},
		Printer: PrinterConfig{
			DPI:          203,
			WidthMM:      48,
			CharsPerLine: 32,
			Encoding:     "cp850",
			DialTimeout:  2 * time.Second,
			Targets: []TargetConfig{
				{Type: "usb", Address: "/dev/usb/lp0"},
			},
		},
		Ticket: TicketConfig{
			Facility: "Minha unidade",
			Brand:    "Novo SGA",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

// Load reads configPath over the defaults. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := defaults()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from TICKETPRINT_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TICKETPRINT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("TICKETPRINT_MATCHING"); v != "" {
		c.Server.Matching = v
	}

	if v := os.Getenv("TICKETPRINT_SURFACE_ERRORS"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Server.SurfaceErrors = on
		}
	}

	// Comma separated kind=address pairs, e.g. "usb=/dev/usb/lp0,tcp=10.0.0.5:9100".
	if v := os.Getenv("TICKETPRINT_PRINTERS"); v != "" {
		var targets []TargetConfig
		for _, item := range strings.Split(v, ",") {
			kind, addr, ok := strings.Cut(strings.TrimSpace(item), "=")
			if !ok {
				continue
			}
			targets = append(targets, TargetConfig{Type: kind, Address: addr})
		}
		c.Printer.Targets = targets
	}

	if v := os.Getenv("TICKETPRINT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 0 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.PrintTimeout < 0 {
		return fmt.Errorf("server print timeout must be non-negative")
	}

	if c.Server.Matching != "legacy" && c.Server.Matching != "strict" {
		return fmt.Errorf("invalid matching: %s (valid: legacy, strict)", c.Server.Matching)
	}

	if c.Printer.DPI <= 0 {
		return fmt.Errorf("printer dpi must be positive")
	}

	if c.Printer.WidthMM <= 0 {
		return fmt.Errorf("printer width must be positive")
	}

	if c.Printer.CharsPerLine <= 0 {
		return fmt.Errorf("printer chars per line must be positive")
	}

	if c.Printer.DialTimeout < 0 {
		return fmt.Errorf("printer dial timeout must be non-negative")
	}

	for i, t := range c.Printer.Targets {
		if t.Type != "usb" && t.Type != "tcp" {
			return fmt.Errorf("printer target %d: invalid type %q (valid: usb, tcp)", i, t.Type)
		}
		if t.Address == "" {
			return fmt.Errorf("printer target %d: address is required", i)
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}
