package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`

	Logger struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`

	Data struct {
		Ticker     string `yaml:"ticker" default:"AMZN"`
		Provider   string `yaml:"provider" default:"yahoo"`
		StartDate  string `yaml:"start_date" default:"2018-01-01"`
		SQLitePath string `yaml:"sqlite_path" default:"data/bars.db"`
	} `yaml:"data"`

	Model struct {
		Dir          string  `yaml:"dir" default:"models"`
		Window       int     `yaml:"window" default:"60"`
		HiddenSize   int     `yaml:"hidden_size" default:"64"`
		Epochs       int     `yaml:"epochs" default:"100"`
		LearningRate float64 `yaml:"learning_rate" default:"0.001"`
		Patience     int     `yaml:"patience" default:"8"`
		Scaler       string  `yaml:"scaler" default:"minmax"`
		Seed         int64   `yaml:"seed"`
	} `yaml:"model"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Queue struct {
		Workers    int           `yaml:"workers" default:"2"`
		QueueSize  int           `yaml:"queue_size" default:"64"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
	} `yaml:"queue"`

	Scheduler struct {
		Enabled bool `yaml:"enabled" default:"true"`
		// Cron specs use six fields with leading seconds.
		RefreshSpec string `yaml:"refresh_spec" default:"0 30 22 * * MON-FRI"`
		TrainSpec   string `yaml:"train_spec" default:"0 0 23 * * FRI"`
	} `yaml:"scheduler"`
}

// Default returns the built-in configuration without reading any file.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Fields absent from the
// file keep their defaults; explicit values, including false and zero, win.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Defaults are applied before parsing so the file can switch boolean
	// fields off without defaults.Set flipping them back.
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TICKER"); v != "" {
		c.Data.Ticker = v
	}
	if v := os.Getenv("START_DATE"); v != "" {
		c.Data.StartDate = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Data.SQLitePath = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("WINDOW must be an integer, got %q", v)
		}
		c.Model.Window = n
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT must be an integer, got %q", v)
		}
		c.Server.Port = n
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Data.Ticker == "" {
		return fmt.Errorf("data.ticker is required")
	}
	if _, err := time.Parse("2006-01-02", c.Data.StartDate); err != nil {
		return fmt.Errorf("data.start_date must be YYYY-MM-DD, got %q", c.Data.StartDate)
	}
	if c.Data.SQLitePath == "" {
		return fmt.Errorf("data.sqlite_path is required")
	}
	if c.Model.Dir == "" {
		return fmt.Errorf("model.dir is required")
	}
	if c.Model.Window < 2 {
		return fmt.Errorf("model.window must be at least 2, got %d", c.Model.Window)
	}
	if c.Model.HiddenSize < 1 {
		return fmt.Errorf("model.hidden_size must be positive, got %d", c.Model.HiddenSize)
	}
	if c.Model.Epochs < 1 {
		return fmt.Errorf("model.epochs must be positive, got %d", c.Model.Epochs)
	}
	if c.Model.LearningRate <= 0 {
		return fmt.Errorf("model.learning_rate must be positive, got %g", c.Model.LearningRate)
	}
	if c.Model.Scaler != "minmax" && c.Model.Scaler != "zscore" {
		return fmt.Errorf("model.scaler must be 'minmax' or 'zscore', got %q", c.Model.Scaler)
	}
	return nil
}

// StartDay returns the configured history start as a UTC day.
func (c *Config) StartDay() time.Time {
	t, _ := time.Parse("2006-01-02", c.Data.StartDate)
	return t
}
