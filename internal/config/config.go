// Package config loads crsfit settings from defaults, an optional YAML file
// and CRSFIT_ environment variables.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/litescript/crsfit/internal/fit"
	"github.com/litescript/crsfit/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Fit    FitConfig    `mapstructure:"fit"`
	Sample SampleConfig `mapstructure:"sample"`
	Log    LogConfig    `mapstructure:"log"`
	UI     UIConfig     `mapstructure:"ui"`
}

type FitConfig struct {
	RoundingTolerance float64       `mapstructure:"rounding_tolerance"`
	NoShiftTolerance  float64       `mapstructure:"no_shift_tolerance"`
	ImprovementRatio  float64       `mapstructure:"improvement_ratio"`
	ErrorGoal         float64       `mapstructure:"error_goal"`
	StepBudget        int           `mapstructure:"step_budget"`
	ShiftBudget       int           `mapstructure:"shift_budget"`
	EllipsoidBudget   int           `mapstructure:"ellipsoid_budget"`
	Workers           int           `mapstructure:"workers"`
	MaxEvaluations    int64         `mapstructure:"max_evaluations"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type SampleConfig struct {
	Span      float64 `mapstructure:"span"`
	Spacing   float64 `mapstructure:"spacing"`
	Jitter    float64 `mapstructure:"jitter"`
	Tolerance float64 `mapstructure:"tolerance"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type UIConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

func setDefaults(v *viper.Viper) {
	opts := fit.DefaultOptions()
	v.SetDefault("fit.rounding_tolerance", opts.RoundingTolerance)
	v.SetDefault("fit.no_shift_tolerance", opts.NoShiftTolerance)
	v.SetDefault("fit.improvement_ratio", opts.ImprovementRatio)
	v.SetDefault("fit.error_goal", opts.ErrorGoal)
	v.SetDefault("fit.step_budget", opts.StepBudget)
	v.SetDefault("fit.shift_budget", opts.ShiftBudget)
	v.SetDefault("fit.ellipsoid_budget", opts.EllipsoidBudget)
	v.SetDefault("fit.workers", runtime.GOMAXPROCS(0))
	v.SetDefault("fit.max_evaluations", opts.MaxEvaluations)
	v.SetDefault("fit.timeout", 2*time.Minute)

	s := fit.DefaultSampler()
	v.SetDefault("sample.span", s.Span)
	v.SetDefault("sample.spacing", s.Spacing)
	v.SetDefault("sample.jitter", s.Jitter)
	v.SetDefault("sample.tolerance", s.Tolerance)

	v.SetDefault("log.level", "info")
	v.SetDefault("ui.refresh_interval", 250*time.Millisecond)
}

// Default returns the built-in configuration without reading files or
// the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration. An explicit path must exist; otherwise
// crsfit.yaml is looked up in . and ./configs and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("crsfit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Environment variables: CRSFIT_FIT_TIMEOUT → fit.timeout
	v.SetEnvPrefix("CRSFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every field is usable and reports all problems at
// once.
func (c *Config) Validate() error {
	var errs []string

	f := c.Fit
	if f.RoundingTolerance < 1 {
		errs = append(errs, fmt.Sprintf("fit.rounding_tolerance must be >= 1, got %v", f.RoundingTolerance))
	}
	if f.NoShiftTolerance <= 0 || f.NoShiftTolerance > 1 {
		errs = append(errs, fmt.Sprintf("fit.no_shift_tolerance must be in (0, 1], got %v", f.NoShiftTolerance))
	}
	if f.ImprovementRatio <= 0 || f.ImprovementRatio > 1 {
		errs = append(errs, fmt.Sprintf("fit.improvement_ratio must be in (0, 1], got %v", f.ImprovementRatio))
	}
	if f.ErrorGoal <= 0 {
		errs = append(errs, "fit.error_goal must be positive")
	}
	if f.StepBudget <= 0 {
		errs = append(errs, "fit.step_budget must be positive")
	}
	if f.ShiftBudget <= 0 {
		errs = append(errs, "fit.shift_budget must be positive")
	}
	if f.EllipsoidBudget <= 0 {
		errs = append(errs, "fit.ellipsoid_budget must be positive")
	}
	if f.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("fit.workers must be positive, got %d", f.Workers))
	}
	if f.MaxEvaluations <= 0 {
		errs = append(errs, "fit.max_evaluations must be positive")
	}
	if f.Timeout < 0 {
		errs = append(errs, "fit.timeout must not be negative")
	}

	s := c.Sample
	if s.Span <= 0 || s.Spacing <= 0 {
		errs = append(errs, "sample.span and sample.spacing must be positive")
	}
	if s.Jitter < 0 {
		errs = append(errs, "sample.jitter must not be negative")
	}
	if s.Tolerance <= 0 {
		errs = append(errs, "sample.tolerance must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	if c.UI.RefreshInterval <= 0 {
		errs = append(errs, "ui.refresh_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// FitOptions converts the fit section into fitter options.
func (c *Config) FitOptions(log *logging.Logger, rec fit.Recorder) fit.Options {
	f := c.Fit
	return fit.Options{
		RoundingTolerance: f.RoundingTolerance,
		NoShiftTolerance:  f.NoShiftTolerance,
		ImprovementRatio:  f.ImprovementRatio,
		ErrorGoal:         f.ErrorGoal,
		StepBudget:        f.StepBudget,
		ShiftBudget:       f.ShiftBudget,
		EllipsoidBudget:   f.EllipsoidBudget,
		Workers:           f.Workers,
		MaxEvaluations:    f.MaxEvaluations,
		Logger:            log,
		Recorder:          rec,
	}
}

// Sampler returns the test-point generator settings.
func (c *Config) Sampler() fit.Sampler {
	return fit.Sampler{
		Span:      c.Sample.Span,
		Spacing:   c.Sample.Spacing,
		Jitter:    c.Sample.Jitter,
		Tolerance: c.Sample.Tolerance,
	}
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}
