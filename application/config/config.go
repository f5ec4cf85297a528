// Package config loads process configuration and the declarative rule file.
// Configuration is read once at startup; changing it does not retroactively
// alter already-issued exceptions' expiry.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	derrors "github.com/breakglass-dev/breakglass/domain/errors"
)

// Duration wraps time.Duration so YAML documents can say "2h" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return &derrors.ValidationError{Field: "duration", Reason: "not a duration: " + raw, Err: err}
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the daemon's startup configuration.
type Config struct {
	// ListenAddr is the HTTP listen address for the admission and
	// exception endpoints.
	ListenAddr string `yaml:"listenAddr" validate:"required"`

	// MaxExceptionLifetime caps requested exception durations.
	MaxExceptionLifetime Duration `yaml:"maxExceptionLifetime" validate:"required,gt=0"`

	// SweepInterval is the time between expiry sweeps.
	SweepInterval Duration `yaml:"sweepInterval" validate:"required,gt=0"`

	// RuleFile is the path to the declarative rule definitions.
	RuleFile string `yaml:"ruleFile"`

	// AuditLogPath is where the JSONL audit trail is appended.
	AuditLogPath string `yaml:"auditLogPath" validate:"required"`

	// SnapshotPath persists exceptions across restarts. Empty disables
	// persistence.
	SnapshotPath string `yaml:"snapshotPath"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:           ":8443",
		MaxExceptionLifetime: Duration(240 * time.Minute),
		SweepInterval:        Duration(2 * time.Minute),
		AuditLogPath:         "audit/decisions.jsonl",
		LogLevel:             "info",
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. Missing fields keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &derrors.StorageError{Op: "read config", Err: err}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &derrors.ValidationError{Field: "config", Reason: "malformed YAML", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration's constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &derrors.ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag() + " constraint", Err: err}
	}
	return &derrors.ValidationError{Err: err}
}
