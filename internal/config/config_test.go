package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litescript/crsfit/internal/fit"
	"github.com/litescript/crsfit/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1.01, cfg.Fit.RoundingTolerance)
	assert.Equal(t, 0.99, cfg.Fit.NoShiftTolerance)
	assert.Equal(t, 0.99, cfg.Fit.ImprovementRatio)
	assert.Equal(t, 0.005, cfg.Fit.ErrorGoal)
	assert.Equal(t, 100, cfg.Fit.StepBudget)
	assert.Equal(t, 500, cfg.Fit.ShiftBudget)
	assert.Equal(t, int64(2_000_000), cfg.Fit.MaxEvaluations)
	assert.Equal(t, 2*time.Minute, cfg.Fit.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, fit.DefaultSampler(), cfg.Sampler())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `
fit:
  error_goal: 0.001
  workers: 3
  timeout: 30s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.001, cfg.Fit.ErrorGoal)
	assert.Equal(t, 3, cfg.Fit.Workers)
	assert.Equal(t, 30*time.Second, cfg.Fit.Timeout)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
	// untouched keys keep their defaults
	assert.Equal(t, 500, cfg.Fit.ShiftBudget)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CRSFIT_FIT_STEP_BUDGET", "42")
	t.Setenv("CRSFIT_LOG_LEVEL", "warn")

	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Fit.StepBudget)
	assert.Equal(t, logging.LevelWarn, cfg.LogLevel())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Fit.RoundingTolerance = 0.5
	cfg.Fit.Workers = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"fit.rounding_tolerance", "fit.workers", "log.level"} {
		assert.Contains(t, err.Error(), key)
	}
	assert.NotContains(t, err.Error(), "fit.shift_budget")
}

func TestFitOptions(t *testing.T) {
	cfg := Default()
	cfg.Fit.Workers = 2
	log := logging.Discard()

	opts := cfg.FitOptions(log, nil)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, cfg.Fit.MaxEvaluations, opts.MaxEvaluations)
	assert.Equal(t, cfg.Fit.RoundingTolerance, opts.RoundingTolerance)
	assert.Same(t, log, opts.Logger)
}
