package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webguard/webguard/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	require.Equal(t, "sqlite", cfg.DB.Driver)
	require.Equal(t, "data/webguard.db", cfg.DB.DSN)
	require.Equal(t, 10*time.Second, cfg.Sched.ProbeTimeout)
	require.Equal(t, 8, cfg.Sched.Concurrency)
	require.Equal(t, 300, cfg.Sched.DefaultIntervalSec)
	require.Equal(t, 60, cfg.Sched.MinIntervalSec)
	require.EqualValues(t, 2000, cfg.Status.LatencyWarnMS)
	require.Equal(t, 5, cfg.Status.RecentWindow)
	require.Equal(t, 100, cfg.Status.UptimeWindow)
	require.Equal(t, 5*time.Minute, cfg.Notify.Cooldown)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webguard.yaml")
	yaml := []byte(`
server:
  addr: ":9090"
db:
  driver: memory
sched:
  min_interval_sec: 30
  probe_timeout: 3s
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "memory", cfg.DB.Driver)
	require.Equal(t, 30, cfg.Sched.MinIntervalSec)
	require.Equal(t, 3*time.Second, cfg.Sched.ProbeTimeout)
	// untouched knobs keep their defaults
	require.Equal(t, 300, cfg.Sched.DefaultIntervalSec)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.DB.Driver)
}

func TestValidate_Rejects(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.DB.Driver = "oracle"
	require.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfiguration)

	cfg.DB.Driver = "sqlite"
	cfg.Sched.Concurrency = 0
	require.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfiguration)
}

func TestValidateSiteURL(t *testing.T) {
	require.NoError(t, ValidateSiteURL("https://example.com"))
	require.NoError(t, ValidateSiteURL("http://example.com:8080/path"))

	for _, bad := range []string{"", "example.com", "ftp://example.com", "https://"} {
		err := ValidateSiteURL(bad)
		require.ErrorIs(t, err, domain.ErrInvalidConfiguration, "url %q", bad)
	}
}
