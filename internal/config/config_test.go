package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbellec/marketwatch/internal/alert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Pipeline.Workers)
	require.Equal(t, time.Second, cfg.Tick())
	require.Equal(t, 5*time.Second, cfg.MinCheckInterval())
	require.Equal(t, 15*time.Second, cfg.FetchTimeout())
	require.Empty(t, cfg.DB.DSN)
	require.False(t, cfg.PubSub.Enabled)

	free := cfg.PlanLimits(alert.PlanFree)
	require.Equal(t, 1, free.MaxFilters)
	require.Equal(t, 1, free.MaxChecksPerMinute)

	elite := cfg.PlanLimits(alert.PlanElite)
	require.Equal(t, 100, elite.MaxFilters)
	require.Equal(t, 10, elite.MaxChecksPerMinute)

	// Unknown plan codes fall back to free limits.
	require.Equal(t, free, cfg.PlanLimits(alert.PlanCode("legacy")))
}

func TestLoad_FileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
pipeline:
  workers: 8
marketplace:
  base_url: https://staging.example/api/v2
plans:
  free:
    max_filters: 2
    max_checks_per_minute: 1
    max_alerts_per_day: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 8, cfg.Pipeline.Workers)
	require.Equal(t, "https://staging.example/api/v2", cfg.Marketplace.BaseURL)
	require.Equal(t, 2, cfg.PlanLimits(alert.PlanFree).MaxFilters)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MARKETWATCH_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	base := func(t *testing.T) Config {
		t.Helper()
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base(t)
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base(t)
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate())

	cfg = base(t)
	cfg.PubSub.Enabled = true
	require.Error(t, cfg.Validate())

	cfg = base(t)
	delete(cfg.Plans, string(alert.PlanFree))
	require.Error(t, cfg.Validate())

	cfg = base(t)
	cfg.Plans["basic"] = alert.PlanLimits{MaxFilters: 0, MaxChecksPerMinute: 2, MaxAlertsPerDay: 100}
	require.Error(t, cfg.Validate())
}
