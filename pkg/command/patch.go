package command

import (
	"fmt"

	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/events"
	"github.com/cuemby/envgate/pkg/types"
)

// PatchRequest lists the set deltas applied by a Patch
type PatchRequest struct {
	PipelinesToAdd    []string                    `json:"pipelines_to_add,omitempty"`
	PipelinesToRemove []string                    `json:"pipelines_to_remove,omitempty"`
	AgentsToAdd       []string                    `json:"agents_to_add,omitempty"`
	AgentsToRemove    []string                    `json:"agents_to_remove,omitempty"`
	VariablesToAdd    []types.EnvironmentVariable `json:"variables_to_add,omitempty"`
	VariablesToRemove []string                    `json:"variables_to_remove,omitempty"`
}

// Patch applies pipeline, agent and variable deltas to a local environment.
// Each delta removes before it adds, so a name present in both lists ends
// up present.
type Patch struct {
	name string
	req  PatchRequest
	hash string
}

// NewPatch returns a command patching name. A non-empty hash must match the
// current EnvironmentHash.
func NewPatch(name string, req PatchRequest, hash string) *Patch {
	return &Patch{name: name, req: req, hash: hash}
}

func (c *Patch) Name() string   { return OpPatch }
func (c *Patch) Target() string { return c.name }

func (c *Patch) IsValid(snap *config.Snapshot) error {
	if err := requireLocal(snap, c.name, "updated"); err != nil {
		return err
	}
	if err := checkHash(snap, c.name, c.hash, false); err != nil {
		return err
	}

	var fields []config.FieldError
	for _, p := range c.req.PipelinesToRemove {
		if repo, ok := snap.RemotePipelineOrigin(c.name, p); ok {
			fields = append(fields, config.FieldError{Entity: c.name, Field: "pipelines", Message: fmt.Sprintf(
				"Pipeline '%s' cannot be removed from environment '%s' as the association has been defined remotely in config repository '%s'",
				p, c.name, repo)})
		}
	}
	for _, a := range c.req.AgentsToRemove {
		if repo, ok := snap.RemoteAgentOrigin(c.name, a); ok {
			fields = append(fields, config.FieldError{Entity: c.name, Field: "agents", Message: fmt.Sprintf(
				"Agent '%s' cannot be removed from environment '%s' as the association has been defined remotely in config repository '%s'",
				a, c.name, repo)})
		}
	}
	if len(fields) > 0 {
		return config.NewValidationError(fmt.Sprintf("Failed to update environment '%s'.", c.name), fields...)
	}

	return snap.Check(c.Update)
}

func (c *Patch) Update(wc *config.WorkingCopy) error {
	env := wc.Environment(c.name)
	if env == nil {
		return config.NewNotFoundError(fmt.Sprintf("Environment '%s' not found.", c.name))
	}

	for _, p := range c.req.PipelinesToRemove {
		env.RemovePipeline(p)
	}
	for _, p := range c.req.PipelinesToAdd {
		env.AddPipeline(p)
	}

	for _, a := range c.req.AgentsToRemove {
		env.RemoveAgent(a)
	}
	for _, a := range c.req.AgentsToAdd {
		env.AddAgent(a)
	}

	for _, v := range c.req.VariablesToRemove {
		env.RemoveVariable(v)
	}
	for _, v := range c.req.VariablesToAdd {
		env.SetVariable(v)
	}
	return nil
}

func (c *Patch) Event(*config.Snapshot) *events.Event {
	return events.NewEvent(events.EventEnvironmentPatched,
		fmt.Sprintf("Updated environment '%s'.", c.name),
		map[string]string{events.MetaEnvironment: c.name})
}
