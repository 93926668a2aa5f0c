package settings

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/tracing"
	"github.com/cuemby/envgate/pkg/types"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultDataDir          = "./envgate-data"
	DefaultMetricsAddr      = "127.0.0.1:9090"
	DefaultResyncInterval   = 30 * time.Second
	DefaultScheduleInterval = 5 * time.Second
)

// Settings is the server configuration file
type Settings struct {
	Server ServerSettings `yaml:"server"`
	Seed   Seed           `yaml:"seed"`
}

// ServerSettings configures the envgate process
type ServerSettings struct {
	DataDir          string         `yaml:"data_dir"`
	MetricsAddr      string         `yaml:"metrics_addr"`
	ResyncInterval   time.Duration  `yaml:"resync_interval"`
	ScheduleInterval time.Duration  `yaml:"schedule_interval"`
	ConfigRepoDir    string         `yaml:"config_repo_dir"`
	Log              log.Config     `yaml:"log"`
	Tracing          tracing.Config `yaml:"tracing"`
}

// Seed is the declarative configuration loaded when the store is empty, or
// on every start when forced
type Seed struct {
	Pipelines    []string             `yaml:"pipelines"`
	Environments []*types.Environment `yaml:"environments"`
	ConfigRepos  []ConfigRepo         `yaml:"config_repos"`
	Agents       []*types.Agent       `yaml:"agents"`
}

// ConfigRepo holds the environment parts contributed by one config repository
type ConfigRepo struct {
	ID           string               `yaml:"id"`
	Pipelines    []string             `yaml:"pipelines"`
	Environments []*types.Environment `yaml:"environments"`
}

// IsEmpty reports whether the seed declares nothing
func (s Seed) IsEmpty() bool {
	return len(s.Pipelines) == 0 && len(s.Environments) == 0 &&
		len(s.ConfigRepos) == 0 && len(s.Agents) == 0
}

// Default returns settings with every default applied
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

// Load reads settings from a YAML file
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return Parse(data)
}

// Parse decodes settings from YAML and applies defaults
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.applyDefaults()
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) applyDefaults() {
	if s.Server.DataDir == "" {
		s.Server.DataDir = DefaultDataDir
	}
	if s.Server.MetricsAddr == "" {
		s.Server.MetricsAddr = DefaultMetricsAddr
	}
	if s.Server.ResyncInterval <= 0 {
		s.Server.ResyncInterval = DefaultResyncInterval
	}
	if s.Server.ScheduleInterval <= 0 {
		s.Server.ScheduleInterval = DefaultScheduleInterval
	}
	if s.Server.Log.Level == "" {
		s.Server.Log.Level = log.InfoLevel
	}
	if s.Server.Tracing.Enabled {
		if s.Server.Tracing.Exporter == "" {
			s.Server.Tracing.Exporter = tracing.ExporterStdout
		}
		if s.Server.Tracing.SamplingRate == 0 {
			s.Server.Tracing.SamplingRate = 1
		}
	}
}

func (s *Settings) validate() error {
	if err := s.Server.Tracing.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(s.Seed.ConfigRepos))
	for i, repo := range s.Seed.ConfigRepos {
		if repo.ID == "" {
			return fmt.Errorf("config_repos[%d]: id is required", i)
		}
		if seen[repo.ID] {
			return fmt.Errorf("config_repos[%d]: duplicate id %q", i, repo.ID)
		}
		seen[repo.ID] = true
	}
	return nil
}
