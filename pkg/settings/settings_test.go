package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  data_dir: /var/lib/envgate
  resync_interval: 10s
  log:
    level: debug
    json: true
seed:
  pipelines: [build, deploy, smoke]
  environments:
    - name: uat
      pipelines: [build]
      agents: [A1]
      variables:
        - name: STAGE
          value: uat
  config_repos:
    - id: infra
      pipelines: [remote-build]
      environments:
        - name: uat
          pipelines: [remote-build]
          agents: [A9]
  agents:
    - id: A2
      environments: uat
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/envgate", s.Server.DataDir)
	assert.Equal(t, DefaultMetricsAddr, s.Server.MetricsAddr)
	assert.Equal(t, 10*time.Second, s.Server.ResyncInterval)
	assert.Equal(t, log.DebugLevel, s.Server.Log.Level)
	assert.True(t, s.Server.Log.JSONOutput)

	require.Len(t, s.Seed.Environments, 1)
	assert.Equal(t, "STAGE", s.Seed.Environments[0].Variables[0].Name)
	require.Len(t, s.Seed.ConfigRepos, 1)
	assert.Equal(t, "infra", s.Seed.ConfigRepos[0].ID)
	assert.Equal(t, "uat", s.Seed.Agents[0].Environments)
	assert.False(t, s.Seed.IsEmpty())
}

func TestDefaults(t *testing.T) {
	s, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDataDir, s.Server.DataDir)
	assert.Equal(t, DefaultResyncInterval, s.Server.ResyncInterval)
	assert.Equal(t, DefaultScheduleInterval, s.Server.ScheduleInterval)
	assert.Equal(t, log.InfoLevel, s.Server.Log.Level)
	assert.True(t, s.Seed.IsEmpty())
	assert.Equal(t, Default(), s)
}

func TestTracingDefaults(t *testing.T) {
	s, err := Parse([]byte("server:\n  tracing:\n    enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, tracing.ExporterStdout, s.Server.Tracing.Exporter)
	assert.Equal(t, 1.0, s.Server.Tracing.SamplingRate)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed yaml", data: "server: ["},
		{name: "repo without id", data: "seed:\n  config_repos:\n    - pipelines: [a]\n"},
		{name: "duplicate repo", data: "seed:\n  config_repos:\n    - id: r\n    - id: r\n"},
		{name: "unknown trace exporter", data: "server:\n  tracing:\n    enabled: true\n    exporter: zipkin\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "envgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Seed.Pipelines, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedIndex(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	idx, err := s.Seed.Index()
	require.NoError(t, err)

	assert.Equal(t, []string{"A1", "A2", "A9"}, idx.AgentsOf("uat"))
	pipelines, err := idx.PipelinesOf("uat")
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "remote-build"}, pipelines)
}

func TestSeedSnapshotValidates(t *testing.T) {
	s, err := Parse([]byte(`
seed:
  environments:
    - name: uat
      pipelines: [unknown]
`))
	require.NoError(t, err)

	_, err = s.Seed.Snapshot()
	assert.True(t, config.IsValidation(err))
}
