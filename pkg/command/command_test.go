package command

import (
	"errors"
	"testing"

	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/storage"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *config.Store {
	t.Helper()
	persist, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = persist.Close() })

	s, err := config.NewStore(persist, nil)
	require.NoError(t, err)

	_, err = s.Replace([]string{"P1", "P2", "P3", "P4"}, []*types.Environment{
		{Name: "uat", Pipelines: []string{"P1"}, Agents: []string{"A1"}},
		{Name: "prod", Pipelines: []string{"P3"}},
	})
	require.NoError(t, err)
	_, err = s.UpsertConfigRepo("repo-1", nil, []*types.Environment{
		{Name: "uat", Pipelines: []string{"P2"}, Agents: []string{"A2"}},
		{Name: "remote", Pipelines: []string{"P4"}},
	})
	require.NoError(t, err)
	return s
}

func hashOf(t *testing.T, s *config.Store, name string) string {
	t.Helper()
	h, ok := s.Current().EnvironmentHash(name)
	require.True(t, ok)
	return h
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name     string
		env      *types.Environment
		wantKind config.ErrorKind
		wantMsg  string
	}{
		{name: "new environment", env: &types.Environment{Name: "qa", Agents: []string{"A5"}}},
		{name: "duplicate local name", env: &types.Environment{Name: "UAT"}, wantKind: config.KindValidation, wantMsg: "Environment 'UAT' already exists."},
		{name: "duplicate remote name", env: &types.Environment{Name: "remote"}, wantKind: config.KindValidation, wantMsg: "already exists"},
		{name: "invalid name", env: &types.Environment{Name: "bad name"}, wantKind: config.KindValidation, wantMsg: "Invalid name"},
		{name: "pipeline owned elsewhere", env: &types.Environment{Name: "qa", Pipelines: []string{"P3"}}, wantKind: config.KindValidation, wantMsg: "already part of prod environment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			before := s.Current()

			_, err := s.Commit(NewCreate(tt.env))
			if tt.wantKind == "" {
				require.NoError(t, err)
				env, ok := s.Current().Environment(tt.env.Name)
				require.True(t, ok)
				assert.Equal(t, tt.env.Agents, env.Agents)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, config.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Same(t, before, s.Current())
		})
	}
}

func TestCreateKeepsOwnCopy(t *testing.T) {
	s := newStore(t)
	env := &types.Environment{Name: "qa"}
	cmd := NewCreate(env)
	env.Name = "changed"

	_, err := s.Commit(cmd)
	require.NoError(t, err)
	assert.True(t, s.Current().HasEnvironment("qa"))
}

func TestUpdateOptimisticConcurrency(t *testing.T) {
	s := newStore(t)
	h0 := hashOf(t, s, "uat")

	// First editor wins with the hash it read
	first := &types.Environment{Name: "uat", Pipelines: []string{"P1"}, Agents: []string{"A1", "A3"}}
	_, err := s.Commit(NewUpdate("uat", first, h0))
	require.NoError(t, err)
	h1 := hashOf(t, s, "uat")
	assert.NotEqual(t, h0, h1)

	// Second editor still holds the old hash
	second := &types.Environment{Name: "uat", Pipelines: []string{"P1"}}
	_, err = s.Commit(NewUpdate("uat", second, h0))
	require.Error(t, err)
	assert.True(t, config.IsConflict(err))
	assert.Contains(t, err.Error(), "Someone has modified the configuration for Environment 'uat'")

	env, _ := s.Current().Environment("uat")
	assert.Contains(t, env.Agents, "A3", "rejected update must not be applied")

	// Missing hash is also a conflict
	_, err = s.Commit(NewUpdate("uat", second, ""))
	assert.True(t, config.IsConflict(err))
}

func TestUpdateRenameAndErrors(t *testing.T) {
	s := newStore(t)

	_, err := s.Commit(NewUpdate("prod", &types.Environment{Name: "production", Pipelines: []string{"P3"}}, hashOf(t, s, "prod")))
	require.NoError(t, err)
	assert.False(t, s.Current().HasEnvironment("prod"))
	assert.True(t, s.Current().HasEnvironment("production"))

	tests := []struct {
		name     string
		oldName  string
		env      *types.Environment
		wantKind config.ErrorKind
	}{
		{name: "missing", oldName: "nope", env: &types.Environment{Name: "nope"}, wantKind: config.KindNotFound},
		{name: "remote only", oldName: "remote", env: &types.Environment{Name: "remote"}, wantKind: config.KindValidation},
		{name: "rename onto existing", oldName: "production", env: &types.Environment{Name: "uat"}, wantKind: config.KindValidation},
		{name: "rename with config repo part", oldName: "uat", env: &types.Environment{Name: "qa", Pipelines: []string{"P1"}}, wantKind: config.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, _ := s.Current().EnvironmentHash(tt.oldName)
			_, err := s.Commit(NewUpdate(tt.oldName, tt.env, hash))
			assert.Equal(t, tt.wantKind, config.KindOf(err))
		})
	}

	// The rejected rename left the environment whole
	snap := s.Current()
	assert.False(t, snap.HasEnvironment("qa"))
	uat, ok := snap.Environment("uat")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"P1", "P2"}, uat.Pipelines)
	assert.Len(t, snap.RemoteParts("uat"), 1)
}

func TestUpdateKeepsNameWithConfigRepoPart(t *testing.T) {
	s := newStore(t)

	env := &types.Environment{Name: "UAT", Pipelines: []string{"P1"}, Agents: []string{"A1", "A5"}}
	_, err := s.Commit(NewUpdate("uat", env, hashOf(t, s, "uat")))
	require.NoError(t, err)

	merged, ok := s.Current().Environment("uat")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"A1", "A2", "A5"}, merged.Agents)
}

func TestPatch(t *testing.T) {
	s := newStore(t)

	req := PatchRequest{
		PipelinesToAdd:    []string{"P3"},
		PipelinesToRemove: []string{"P1"},
		AgentsToAdd:       []string{"A4"},
		VariablesToAdd:    []types.EnvironmentVariable{{Name: "K", Value: "v"}},
	}
	_, err := s.Commit(NewPatch("uat", req, ""))
	require.Error(t, err, "P3 belongs to prod")
	assert.True(t, config.IsValidation(err))

	req.PipelinesToAdd = nil
	_, err = s.Commit(NewPatch("uat", req, hashOf(t, s, "uat")))
	require.NoError(t, err)

	local, _ := s.Current().LocalEnvironment("uat")
	assert.Empty(t, local.Pipelines)
	assert.Equal(t, []string{"A1", "A4"}, local.Agents)
	v, ok := local.Variable("K")
	require.True(t, ok)
	assert.Equal(t, "v", v.Value)

	merged, _ := s.Current().Environment("uat")
	assert.Equal(t, []string{"P2"}, merged.Pipelines, "remote association stays")
}

func TestPatchIsIdempotent(t *testing.T) {
	s := newStore(t)
	req := PatchRequest{
		AgentsToAdd:       []string{"A4"},
		AgentsToRemove:    []string{"missing"},
		VariablesToRemove: []string{"missing"},
	}

	_, err := s.Commit(NewPatch("uat", req, ""))
	require.NoError(t, err)
	h1 := hashOf(t, s, "uat")

	_, err = s.Commit(NewPatch("uat", req, ""))
	require.NoError(t, err)
	assert.Equal(t, h1, hashOf(t, s, "uat"))
}

func TestPatchRejectsRemoteAssociations(t *testing.T) {
	s := newStore(t)

	_, err := s.Commit(NewPatch("uat", PatchRequest{
		PipelinesToRemove: []string{"P2"},
		AgentsToRemove:    []string{"A2"},
	}, ""))
	require.Error(t, err)

	var cmdErr *config.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, config.KindValidation, cmdErr.Kind)
	require.Len(t, cmdErr.Fields, 2)
	assert.Contains(t, cmdErr.Fields[0].Message, "config repository 'repo-1'")
}

func TestPatchStaleHash(t *testing.T) {
	s := newStore(t)
	_, err := s.Commit(NewPatch("uat", PatchRequest{AgentsToAdd: []string{"A4"}}, "stale"))
	assert.True(t, config.IsConflict(err))
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		hash     func(s *config.Store) string
		wantKind config.ErrorKind
		wantMsg  string
	}{
		{name: "local environment", target: "prod"},
		{name: "with current hash", target: "prod", hash: func(s *config.Store) string { h, _ := s.Current().EnvironmentHash("prod"); return h }},
		{name: "stale hash", target: "prod", hash: func(*config.Store) string { return "stale" }, wantKind: config.KindConflict},
		{name: "missing", target: "nope", wantKind: config.KindNotFound, wantMsg: "Environment 'nope' not found."},
		{name: "remote only", target: "remote", wantKind: config.KindValidation, wantMsg: "config repository 'repo-1'"},
		{name: "partially remote", target: "uat", wantKind: config.KindValidation, wantMsg: "partially defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			hash := ""
			if tt.hash != nil {
				hash = tt.hash(s)
			}

			_, err := s.Commit(NewDelete(tt.target, hash))
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.False(t, s.Current().HasEnvironment(tt.target))
				return
			}
			assert.Equal(t, tt.wantKind, config.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCommandEvents(t *testing.T) {
	s := newStore(t)
	snap := s.Current()

	assert.Equal(t, "Added environment 'qa'.", NewCreate(&types.Environment{Name: "qa"}).Event(snap).Message)
	assert.Equal(t, "Updated environment 'uat'.", NewUpdate("uat", &types.Environment{Name: "uat"}, "").Event(snap).Message)
	assert.Equal(t, "Updated environment 'uat'.", NewPatch("uat", PatchRequest{}, "").Event(snap).Message)
	assert.Equal(t, "Environment 'prod' was deleted successfully.", NewDelete("prod", "").Event(snap).Message)
}
