package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  node_id: node-1
storage:
  data_dirs:
    - /data/1
    - "[SSD]/data/2"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "node-1", cfg.Server.NodeID)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 50053, cfg.Server.HealthPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "0700", cfg.Storage.DirPermission)
	assert.Equal(t, os.FileMode(0o700), cfg.Storage.Permission())

	assert.Equal(t, 10*time.Minute, cfg.DiskCheck.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.DiskCheck.MinGap)
	assert.Equal(t, 0, cfg.DiskCheck.FailedVolumesTolerated)
	assert.Equal(t, 4, cfg.DiskCheck.Workers)
	assert.Equal(t, 98.0, cfg.DiskCheck.DegradedUsagePercent)

	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_ExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, `
server:
  node_id: node-2
  health_port: 6000
storage:
  data_dirs: ["/data/1"]
  dir_permission: "0755"
disk_check:
  timeout: 30s
  min_gap: 1m
  failed_volumes_tolerated: 2
  workers: 8
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.HealthPort)
	assert.Equal(t, os.FileMode(0o755), cfg.Storage.Permission())
	assert.Equal(t, 30*time.Second, cfg.DiskCheck.Timeout)
	assert.Equal(t, time.Minute, cfg.DiskCheck.MinGap)
	assert.Equal(t, 2, cfg.DiskCheck.FailedVolumesTolerated)
	assert.Equal(t, 8, cfg.DiskCheck.Workers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing node id",
			content: `
storage:
  data_dirs: ["/data/1"]
`,
		},
		{
			name: "no data dirs",
			content: `
server:
  node_id: node-1
`,
		},
		{
			name: "bad permission",
			content: `
server:
  node_id: node-1
storage:
  data_dirs: ["/data/1"]
  dir_permission: "0999"
`,
		},
		{
			name: "negative tolerance",
			content: `
server:
  node_id: node-1
storage:
  data_dirs: ["/data/1"]
disk_check:
  failed_volumes_tolerated: -1
`,
		},
		{
			name: "degraded percent out of range",
			content: `
server:
  node_id: node-1
storage:
  data_dirs: ["/data/1"]
disk_check:
  degraded_usage_percent: 150
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
