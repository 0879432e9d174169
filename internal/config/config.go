// Package config loads search settings from YAML, the environment and
// command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/namcsi/apperception-clingo/internal/encoding"
	"github.com/namcsi/apperception-clingo/internal/frame"
)

// ErrInvalid wraps every configuration error.
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New()

// #region types

// Config holds everything the controller needs to start a search.
type Config struct {
	ASPDir          string         `yaml:"asp_dir" validate:"required"`
	MetaInterpreter string         `yaml:"meta_interpreter" validate:"required"`
	Seed            frame.Frame    `yaml:"seed"`
	Delta           frame.Delta    `yaml:"delta" validate:"required,min=1,dive"`
	SwitchEvery     int            `yaml:"switch_frame_at_iter" validate:"gte=1"`
	MaxIterations   int            `yaml:"max_iterations" validate:"gte=1"`
	StepMode        frame.StepMode `yaml:"step_mode" validate:"oneof=key delta"`
	Solver          SolverConfig   `yaml:"solver"`
	DBPath          string         `yaml:"db"`
	LogFile         string         `yaml:"log_file"`
	MetricsAddr     string         `yaml:"metrics_addr"`
	Logging         LoggingConfig  `yaml:"logging"`
}

// SolverConfig selects and tunes the solver backend. A non-empty Addr
// routes sessions to a remote solverd instead of a local clingo.
type SolverConfig struct {
	Binary    string        `yaml:"binary" validate:"required"`
	Addr      string        `yaml:"addr"`
	TimeLimit time.Duration `yaml:"time_limit" validate:"gte=0"`
	ExtraArgs []string      `yaml:"extra_args"`
	TempDir   string        `yaml:"temp_dir"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// #endregion types

// #region defaults

// Default returns the standard search configuration.
func Default() *Config {
	opts := frame.DefaultOptions()
	return &Config{
		ASPDir:          filepath.Join("src", "apperception_clingo", "asp"),
		MetaInterpreter: encoding.Default,
		Seed:            opts.Seed,
		Delta:           opts.Delta,
		SwitchEvery:     opts.SwitchEvery,
		MaxIterations:   opts.MaxIterations,
		StepMode:        opts.Mode,
		Solver:          SolverConfig{Binary: "clingo"},
		Logging:         LoggingConfig{Level: "info"},
	}
}

// #endregion defaults

// #region load

// Load reads a YAML file over the defaults, then applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			// A listed delta replaces the default one rather than merging into it.
			cfg.Delta = nil
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
			}
			if cfg.Delta == nil {
				cfg.Delta = frame.DefaultDelta()
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	c.Solver.Binary = envOr("APPERCEPTION_CLINGO", c.Solver.Binary)
	c.Solver.Addr = envOr("APPERCEPTION_SOLVER_ADDR", c.Solver.Addr)
	c.ASPDir = envOr("APPERCEPTION_ASP_DIR", c.ASPDir)
	c.DBPath = envOr("APPERCEPTION_DB", c.DBPath)
	c.Logging.Level = envOr("APPERCEPTION_LOG_LEVEL", c.Logging.Level)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region overrides

// ApplyOverrides sets seed frame keys from "<const>=<int>" assignments.
func (c *Config) ApplyOverrides(assignments []string) error {
	for _, a := range assignments {
		p, v, err := frame.ParseOverride(a)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if err := c.Seed.Set(p, v); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

// #endregion overrides

// #region validate

// Validate checks struct constraints, the delta and the meta-interpreter name.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Delta.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := encoding.MetaInterpreter(c.ASPDir, c.MetaInterpreter); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// SchedulerOptions returns the frame scheduler settings.
func (c *Config) SchedulerOptions() frame.Options {
	return frame.Options{
		Seed:          c.Seed,
		Delta:         append(frame.Delta(nil), c.Delta...),
		SwitchEvery:   c.SwitchEvery,
		MaxIterations: c.MaxIterations,
		Mode:          c.StepMode,
	}
}

// #endregion validate
