package settings

import (
	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/membership"
)

// Snapshot builds and validates the configuration the seed describes
// without touching storage
func (s Seed) Snapshot() (*config.Snapshot, error) {
	wc := config.Empty().Edit()
	wc.SetPipelines(s.Pipelines)
	for _, env := range s.Environments {
		wc.AddEnvironment(env)
	}
	for _, repo := range s.ConfigRepos {
		for _, p := range repo.Pipelines {
			wc.AddPipeline(p)
		}
		wc.SetConfigRepo(repo.ID, repo.Environments)
	}

	snap := wc.Freeze()
	if err := config.Validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Index builds the membership index for the seed's configuration and agents
func (s Seed) Index() (*membership.Index, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return membership.Build(snap.Environments(), s.Agents, membership.Options{
		Generation: 1,
		ConfigHash: snap.Hash(),
	}), nil
}
