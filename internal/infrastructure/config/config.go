package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"required,oneof=development staging production"`
	LogLevel    string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	Server        ServerConfig        `koanf:"server"`
	Engine        EngineConfig        `koanf:"engine"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Telemetry     TelemetryConfig     `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type EngineConfig struct {
	HistoryLimit         int           `koanf:"history_limit" validate:"gt=0"`
	ComplianceEventLimit int           `koanf:"compliance_event_limit" validate:"gt=0"`
	RetentionWindow      time.Duration `koanf:"retention_window" validate:"gt=0"`
	SweepSchedule        string        `koanf:"sweep_schedule" validate:"required"`
	HomeRegion           string        `koanf:"home_region" validate:"required,len=2"`
}

type NotificationsConfig struct {
	RatePerSecond   float64       `koanf:"rate_per_second" validate:"gt=0"`
	Burst           int           `koanf:"burst" validate:"gt=0"`
	DeliveryTimeout time.Duration `koanf:"delivery_timeout" validate:"gt=0"`
}

type TelemetryConfig struct {
	Enabled      bool          `koanf:"enabled"`
	OTLPEndpoint string        `koanf:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplingRate float64       `koanf:"sampling_rate" validate:"gte=0,lte=1"`
	BatchTimeout time.Duration `koanf:"batch_timeout" validate:"gt=0"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Engine: EngineConfig{
			HistoryLimit:         5000,
			ComplianceEventLimit: 10000,
			RetentionWindow:      30 * 24 * time.Hour,
			SweepSchedule:        "@every 15m",
			HomeRegion:           "SG",
		},
		Notifications: NotificationsConfig{
			RatePerSecond:   50,
			Burst:           100,
			DeliveryTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 0.1,
			BatchTimeout: 5 * time.Second,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if exists
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Config file is optional
	}

	// Override with environment variables
	if err := k.Load(env.Provider("CLINIC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CLINIC_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
