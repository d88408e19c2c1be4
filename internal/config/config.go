package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Duration is a time.Duration that reads and writes as a Go duration string
// ("2s", "500ms") in the config file.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	DBPath         string   `json:"dbPath"`         // ":memory:" keeps jobs for the process lifetime only
	Steps          int      `json:"steps"`          // updates per simulated run
	StepInterval   Duration `json:"stepInterval"`   // delay between updates
	AllowedOrigins []string `json:"allowedOrigins"` // CORS allow-list
	JobRetention   Duration `json:"jobRetention"`   // idle jobs older than this are pruned; 0 keeps everything
}

type ClientConfig struct {
	BaseURL        string   `json:"baseURL"`
	RequestTimeout Duration `json:"requestTimeout"`
}

type NotificationsConfig struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type Config struct {
	Server        ServerConfig        `json:"server"`
	Client        ClientConfig        `json:"client"`
	Notifications NotificationsConfig `json:"notifications"`
	LogDir        string              `json:"logDir"`
	LogLevel      string              `json:"logLevel"`
	LogFormat     string              `json:"logFormat"` // "text" or "json"
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			DBPath:         ":memory:",
			Steps:          30,
			StepInterval:   Duration(2 * time.Second),
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
			JobRetention:   Duration(24 * time.Hour),
		},
		Client: ClientConfig{
			BaseURL:        "http://localhost:8000",
			RequestTimeout: Duration(10 * time.Second),
		},
		LogDir:    filepath.Join(Dir(), "logs"),
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Dir is the per-user state directory.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".trainwatch")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return Defaults(), err
	}
	return cfg, nil
}

// Validate rejects values the server or client cannot run with.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Steps < 1 {
		return fmt.Errorf("server.steps must be at least 1, got %d", c.Server.Steps)
	}
	if c.Server.StepInterval < 0 {
		return fmt.Errorf("server.stepInterval must not be negative")
	}
	if c.Server.JobRetention < 0 {
		return fmt.Errorf("server.jobRetention must not be negative")
	}
	if f := strings.ToLower(c.LogFormat); f != "" && f != "text" && f != "json" {
		return fmt.Errorf("logFormat must be text or json, got %q", c.LogFormat)
	}
	if c.Client.BaseURL == "" {
		return errors.New("client.baseURL is required")
	}
	return nil
}
