package config

import (
	"slices"

	"github.com/cuemby/envgate/pkg/types"
)

// WorkingCopy is a mutable copy of a Snapshot. Commands apply their changes
// to a working copy; the store freezes it into the next snapshot or
// discards it on failure.
type WorkingCopy struct {
	pipelines []string
	local     []*types.Environment
	repos     []*repoParts
}

// Environment returns the mutable local environment with the given name
func (w *WorkingCopy) Environment(name string) *types.Environment {
	for _, env := range w.local {
		if types.SameName(env.Name, name) {
			return env
		}
	}
	return nil
}

// AddEnvironment adds a local environment. The working copy takes a copy of env.
func (w *WorkingCopy) AddEnvironment(env *types.Environment) {
	clone := env.Clone()
	clone.Origin = ""
	w.local = append(w.local, clone)
}

// ReplaceEnvironment swaps the local environment named oldName for env,
// which may carry a different name. It reports whether oldName existed.
func (w *WorkingCopy) ReplaceEnvironment(oldName string, env *types.Environment) bool {
	for i, existing := range w.local {
		if types.SameName(existing.Name, oldName) {
			clone := env.Clone()
			clone.Origin = ""
			w.local[i] = clone
			return true
		}
	}
	return false
}

// RemoveEnvironment deletes the local environment and reports whether it existed
func (w *WorkingCopy) RemoveEnvironment(name string) bool {
	n := len(w.local)
	w.local = slices.DeleteFunc(w.local, func(env *types.Environment) bool { return types.SameName(env.Name, name) })
	return len(w.local) != n
}

// SetPipelines replaces the set of known pipelines
func (w *WorkingCopy) SetPipelines(names []string) {
	w.pipelines = slices.Clone(names)
}

// AddPipeline registers a known pipeline
func (w *WorkingCopy) AddPipeline(name string) {
	if !slices.ContainsFunc(w.pipelines, func(p string) bool { return types.SameName(p, name) }) {
		w.pipelines = append(w.pipelines, name)
	}
}

// SetConfigRepo replaces the environment parts contributed by a config repository
func (w *WorkingCopy) SetConfigRepo(id string, parts []*types.Environment) {
	w.RemoveConfigRepo(id)
	w.repos = append(w.repos, newRepoParts(id, parts))
}

// RemoveConfigRepo drops a config repository and reports whether it existed
func (w *WorkingCopy) RemoveConfigRepo(id string) bool {
	n := len(w.repos)
	w.repos = slices.DeleteFunc(w.repos, func(r *repoParts) bool { return r.id == id })
	return len(w.repos) != n
}

// Freeze builds the snapshot described by the working copy. The working
// copy must not be used afterwards.
func (w *WorkingCopy) Freeze() *Snapshot {
	return freeze(w.pipelines, w.local, w.repos)
}
