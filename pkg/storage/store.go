package storage

import (
	"errors"

	"github.com/cuemby/envgate/pkg/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// ConfigRecord is the persisted form of the declarative configuration
type ConfigRecord struct {
	Hash         string               `json:"hash"`
	Pipelines    []string             `json:"pipelines"`
	Environments []*types.Environment `json:"environments"`
	ConfigRepos  []*ConfigRepoRecord  `json:"config_repos"`
}

// ConfigRepoRecord holds the environment parts contributed by one config repository
type ConfigRepoRecord struct {
	ID           string               `json:"id"`
	Environments []*types.Environment `json:"environments"`
}

// Store defines the interface for envgate state storage
type Store interface {
	// Declarative configuration, replaced as a whole on every commit
	SaveConfig(record *ConfigRecord) error
	LoadConfig() (*ConfigRecord, error)

	// Agents
	CreateAgent(agent *types.Agent) error
	GetAgent(id string) (*types.Agent, error)
	ListAgents() ([]*types.Agent, error)
	UpdateAgent(agent *types.Agent) error
	DeleteAgent(id string) error

	// Utility
	Close() error
}
