package config

import (
	"encoding/hex"
	"encoding/json"
	"slices"
	"sort"

	"github.com/cuemby/envgate/pkg/storage"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/zeebo/blake3"
)

// repoParts are the environment parts contributed by one config repository
type repoParts struct {
	id   string
	envs []*types.Environment
}

func newRepoParts(id string, envs []*types.Environment) *repoParts {
	parts := &repoParts{id: id, envs: make([]*types.Environment, len(envs))}
	for i, env := range envs {
		parts.envs[i] = env.Clone()
		parts.envs[i].Origin = id
	}
	return parts
}

// Snapshot is an immutable version of the declarative configuration. The
// environments returned by its accessors are shared and must not be
// modified; call Edit to obtain a mutable working copy.
type Snapshot struct {
	pipelines []string
	local     []*types.Environment
	repos     []*repoParts

	merged    []*types.Environment
	byName    map[string]*types.Environment
	localIdx  map[string]*types.Environment
	envHashes map[string]string
	hash      string
}

// Empty returns a snapshot with no pipelines or environments
func Empty() *Snapshot {
	return freeze(nil, nil, nil)
}

// FromRecord rebuilds a snapshot from its persisted form
func FromRecord(rec *storage.ConfigRecord) *Snapshot {
	repos := make([]*repoParts, 0, len(rec.ConfigRepos))
	for _, r := range rec.ConfigRepos {
		repos = append(repos, newRepoParts(r.ID, r.Environments))
	}
	local := make([]*types.Environment, len(rec.Environments))
	for i, env := range rec.Environments {
		local[i] = env.Clone()
		local[i].Origin = ""
	}
	return freeze(rec.Pipelines, local, repos)
}

// freeze takes ownership of its arguments, normalizes their order and
// computes the merged view and content hashes
func freeze(pipelines []string, local []*types.Environment, repos []*repoParts) *Snapshot {
	pipelines = slices.Clone(pipelines)
	sort.Slice(pipelines, func(i, j int) bool { return types.NameKey(pipelines[i]) < types.NameKey(pipelines[j]) })
	local = slices.Clone(local)
	sortEnvironments(local)
	repos = slices.Clone(repos)
	sort.Slice(repos, func(i, j int) bool { return repos[i].id < repos[j].id })

	s := &Snapshot{
		pipelines: pipelines,
		local:     local,
		repos:     repos,
		byName:    make(map[string]*types.Environment),
		localIdx:  make(map[string]*types.Environment),
		envHashes: make(map[string]string),
	}

	for _, env := range local {
		s.localIdx[types.NameKey(env.Name)] = env
		s.mergePart(env)
	}
	for _, repo := range repos {
		for _, part := range repo.envs {
			s.mergePart(part)
		}
	}
	sortEnvironments(s.merged)

	for key, env := range s.byName {
		s.envHashes[key] = digest(env)
	}
	s.hash = digest(struct {
		Pipelines    []string             `json:"pipelines"`
		Environments []*types.Environment `json:"environments"`
		Repos        []storage.ConfigRepoRecord
	}{pipelines, local, s.repoRecords()})

	return s
}

// mergePart folds one local or remote part into the merged view. Pipelines
// and agents are unioned in order of first appearance; a variable from a
// later part overrides an earlier one with the same name.
func (s *Snapshot) mergePart(part *types.Environment) {
	key := types.NameKey(part.Name)
	merged, ok := s.byName[key]
	if !ok {
		merged = &types.Environment{Name: part.Name}
		s.byName[key] = merged
		s.merged = append(s.merged, merged)
	}
	for _, p := range part.Pipelines {
		merged.AddPipeline(p)
	}
	for _, a := range part.Agents {
		merged.AddAgent(a)
	}
	for _, v := range part.Variables {
		merged.SetVariable(v)
	}
}

func sortEnvironments(envs []*types.Environment) {
	sort.SliceStable(envs, func(i, j int) bool { return types.NameKey(envs[i].Name) < types.NameKey(envs[j].Name) })
}

func digest(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Environments only hold strings and bools
		panic(err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hash returns the content hash of the whole configuration
func (s *Snapshot) Hash() string {
	return s.hash
}

// Environments returns the merged environments sorted by name
func (s *Snapshot) Environments() []*types.Environment {
	return s.merged
}

// EnvironmentNames returns the merged environment names sorted
func (s *Snapshot) EnvironmentNames() []string {
	names := make([]string, len(s.merged))
	for i, env := range s.merged {
		names[i] = env.Name
	}
	return names
}

// Environment returns the merged environment with the given name
func (s *Snapshot) Environment(name string) (*types.Environment, bool) {
	env, ok := s.byName[types.NameKey(name)]
	return env, ok
}

// HasEnvironment reports whether a local or remote environment has the name
func (s *Snapshot) HasEnvironment(name string) bool {
	_, ok := s.byName[types.NameKey(name)]
	return ok
}

// LocalEnvironment returns the locally defined part of an environment
func (s *Snapshot) LocalEnvironment(name string) (*types.Environment, bool) {
	env, ok := s.localIdx[types.NameKey(name)]
	return env, ok
}

// EnvironmentForEdit returns a private copy of the local part of an
// environment; changes to it do not affect the snapshot
func (s *Snapshot) EnvironmentForEdit(name string) (*types.Environment, bool) {
	env, ok := s.localIdx[types.NameKey(name)]
	if !ok {
		return nil, false
	}
	return env.Clone(), true
}

// EnvironmentHash returns the content hash of the merged environment. It is
// the token clients present for optimistic concurrency.
func (s *Snapshot) EnvironmentHash(name string) (string, bool) {
	h, ok := s.envHashes[types.NameKey(name)]
	return h, ok
}

// Pipelines returns the names of all known pipelines
func (s *Snapshot) Pipelines() []string {
	return s.pipelines
}

// HasPipeline reports whether the pipeline is known, ignoring case
func (s *Snapshot) HasPipeline(name string) bool {
	return slices.ContainsFunc(s.pipelines, func(p string) bool { return types.SameName(p, name) })
}

// ConfigRepos returns the ids of config repositories contributing environments
func (s *Snapshot) ConfigRepos() []string {
	ids := make([]string, len(s.repos))
	for i, r := range s.repos {
		ids[i] = r.id
	}
	return ids
}

// HasConfigRepo reports whether the config repository is present
func (s *Snapshot) HasConfigRepo(id string) bool {
	return slices.ContainsFunc(s.repos, func(r *repoParts) bool { return r.id == id })
}

// RemoteParts returns the config repository parts of an environment
func (s *Snapshot) RemoteParts(name string) []*types.Environment {
	var parts []*types.Environment
	for _, repo := range s.repos {
		for _, part := range repo.envs {
			if types.SameName(part.Name, name) {
				parts = append(parts, part)
			}
		}
	}
	return parts
}

// RemotePipelineOrigin returns the config repository that associates the
// pipeline with the environment, if any
func (s *Snapshot) RemotePipelineOrigin(envName, pipeline string) (string, bool) {
	return s.remoteOrigin(envName, func(part *types.Environment) bool { return part.HasPipeline(pipeline) })
}

// RemoteAgentOrigin returns the config repository that associates the agent
// with the environment, if any
func (s *Snapshot) RemoteAgentOrigin(envName, agentID string) (string, bool) {
	return s.remoteOrigin(envName, func(part *types.Environment) bool { return part.HasAgent(agentID) })
}

func (s *Snapshot) remoteOrigin(envName string, match func(*types.Environment) bool) (string, bool) {
	for _, repo := range s.repos {
		for _, part := range repo.envs {
			if types.SameName(part.Name, envName) && match(part) {
				return repo.id, true
			}
		}
	}
	return "", false
}

// Record returns the persisted form of the snapshot
func (s *Snapshot) Record() *storage.ConfigRecord {
	records := s.repoRecords()
	repos := make([]*storage.ConfigRepoRecord, len(records))
	for i := range records {
		repos[i] = &records[i]
	}
	return &storage.ConfigRecord{
		Hash:         s.hash,
		Pipelines:    slices.Clone(s.pipelines),
		Environments: slices.Clone(s.local),
		ConfigRepos:  repos,
	}
}

func (s *Snapshot) repoRecords() []storage.ConfigRepoRecord {
	records := make([]storage.ConfigRepoRecord, len(s.repos))
	for i, r := range s.repos {
		records[i] = storage.ConfigRepoRecord{ID: r.id, Environments: r.envs}
	}
	return records
}

// Edit opens a mutable working copy of the snapshot
func (s *Snapshot) Edit() *WorkingCopy {
	local := make([]*types.Environment, len(s.local))
	for i, env := range s.local {
		local[i] = env.Clone()
	}
	return &WorkingCopy{
		pipelines: slices.Clone(s.pipelines),
		local:     local,
		repos:     slices.Clone(s.repos),
	}
}

// Check applies change to a throwaway working copy and validates the result
func (s *Snapshot) Check(change func(*WorkingCopy) error) error {
	wc := s.Edit()
	if err := change(wc); err != nil {
		return err
	}
	return Validate(wc.Freeze())
}
