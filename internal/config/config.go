package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration, loaded from YAML with ${ENV_VAR}
// expansion.
type Config struct {
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Payroll struct {
		// Timezone is the single business timezone every shift is filed
		// under, regardless of where the process runs.
		Timezone      string   `yaml:"timezone"`
		ReportsDir    string   `yaml:"reports_dir"`
		ExportEnabled bool     `yaml:"export_enabled"`
		ExportOnStart bool     `yaml:"export_on_start"`
		Restaurants   []string `yaml:"restaurants"`
	} `yaml:"payroll"`

	API struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// Load reads the config at path, falling back to configs/config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/smena.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	if cfg.Payroll.Timezone == "" {
		cfg.Payroll.Timezone = "Europe/Moscow"
	}
	if cfg.Payroll.ReportsDir == "" {
		cfg.Payroll.ReportsDir = "reports"
	}

	return &cfg, nil
}

// Location resolves the business timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Payroll.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load business timezone %q: %w", c.Payroll.Timezone, err)
	}
	return loc, nil
}
