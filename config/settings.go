package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	setlerrors "github.com/JorisTruong/setl/pkg/errors"
)

// Settings holds global execution parameters for a pipeline.
type Settings struct {
	// Concurrency bounds the worker pool used inside parallel stages.
	Concurrency int `yaml:"concurrency,omitempty" validate:"omitempty,min=1,max=64"`
	// StageTimeout is a per-stage deadline in seconds, 0 meaning none.
	StageTimeout int `yaml:"stage_timeout,omitempty" validate:"omitempty,min=1,max=86400"`
	// Benchmark enables per-factory lifecycle timing collection.
	Benchmark bool `yaml:"benchmark,omitempty"`
	// Optimize enables the stage optimizer before execution.
	Optimize bool `yaml:"optimize,omitempty"`
	// LogLevel names a logging level; Validate and Load check it. The
	// pipeline does not read it: WithLogging takes its own level.
	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,log_level"`
}

// Default returns the settings used when none are supplied.
func Default() Settings {
	return Settings{
		Concurrency: 4,
		LogLevel:    "info",
	}
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	logLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
)

// validatorInstance configures and returns the shared validator instance.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
			_, ok := logLevels[fl.Field().String()]
			return ok
		})

		validateInst = v
	})
	return validateInst
}

// Validate checks the settings against their constraints.
func (s Settings) Validate() error {
	if err := validatorInstance().Struct(s); err != nil {
		return setlerrors.NewValidationError("settings", err.Error(), err)
	}
	return nil
}

// Load reads settings from a YAML file. Unknown keys are rejected so typos
// fail loudly instead of silently running with defaults.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, setlerrors.NewParseError(path, err)
	}

	settings := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, setlerrors.NewParseError(path, err)
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
