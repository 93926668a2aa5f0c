package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/envgate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadConfigEmpty(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadConfig()
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveAndLoadConfig(t *testing.T) {
	store := newTestStore(t)

	record := &ConfigRecord{
		Hash:      "h1",
		Pipelines: []string{"Build", "deploy"},
		Environments: []*types.Environment{
			{Name: "uat", Pipelines: []string{"Build"}, Agents: []string{"A1"}},
			{Name: "prod", Variables: []types.EnvironmentVariable{{Name: "K", Value: "v", Secure: true}}},
		},
		ConfigRepos: []*ConfigRepoRecord{
			{ID: "repo-1", Environments: []*types.Environment{{Name: "uat", Agents: []string{"A2"}}}},
		},
	}
	require.NoError(t, store.SaveConfig(record))

	loaded, err := store.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "h1", loaded.Hash)
	assert.ElementsMatch(t, []string{"Build", "deploy"}, loaded.Pipelines)
	require.Len(t, loaded.Environments, 2)
	assert.ElementsMatch(t, []string{"uat", "prod"}, []string{loaded.Environments[0].Name, loaded.Environments[1].Name})
	require.Len(t, loaded.ConfigRepos, 1)
	assert.Equal(t, "repo-1", loaded.ConfigRepos[0].ID)
	assert.Equal(t, []string{"A2"}, loaded.ConfigRepos[0].Environments[0].Agents)
}

func TestSaveConfigReplacesPrevious(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveConfig(&ConfigRecord{
		Hash:         "h1",
		Pipelines:    []string{"P1", "P2"},
		Environments: []*types.Environment{{Name: "uat"}, {Name: "prod"}},
		ConfigRepos:  []*ConfigRepoRecord{{ID: "repo-1"}},
	}))
	require.NoError(t, store.SaveConfig(&ConfigRecord{
		Hash:         "h2",
		Pipelines:    []string{"P1"},
		Environments: []*types.Environment{{Name: "uat"}},
	}))

	loaded, err := store.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "h2", loaded.Hash)
	assert.Equal(t, []string{"P1"}, loaded.Pipelines)
	require.Len(t, loaded.Environments, 1)
	assert.Equal(t, "uat", loaded.Environments[0].Name)
	assert.Empty(t, loaded.ConfigRepos)
}

func TestConfigSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveConfig(&ConfigRecord{Hash: "h1", Environments: []*types.Environment{{Name: "uat"}}}))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "h1", loaded.Hash)
}

func TestAgentCRUD(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	agent := &types.Agent{ID: "A1", Hostname: "host-1", Environments: "uat", RegisteredAt: now}
	require.NoError(t, store.CreateAgent(agent))

	got, err := store.GetAgent("A1")
	require.NoError(t, err)
	assert.Equal(t, "host-1", got.Hostname)
	assert.Equal(t, "uat", got.Environments)
	assert.True(t, now.Equal(got.RegisteredAt))

	got.Environments = "uat,prod"
	require.NoError(t, store.UpdateAgent(got))

	agents, err := store.ListAgents()
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "uat,prod", agents[0].Environments)

	require.NoError(t, store.DeleteAgent("A1"))
	_, err = store.GetAgent("A1")
	assert.True(t, errors.Is(err, ErrNotFound))
}
