package command

import (
	"fmt"

	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/events"
	"github.com/cuemby/envgate/pkg/types"
)

// Create adds a new local environment
type Create struct {
	env *types.Environment
}

// NewCreate returns a command adding env. The command keeps its own copy.
func NewCreate(env *types.Environment) *Create {
	return &Create{env: env.Clone()}
}

func (c *Create) Name() string   { return OpCreate }
func (c *Create) Target() string { return c.env.Name }

// IsValid rejects names already used by a local or config repository environment
func (c *Create) IsValid(snap *config.Snapshot) error {
	if snap.HasEnvironment(c.env.Name) {
		return config.NewValidationError(fmt.Sprintf("Environment '%s' already exists.", c.env.Name),
			config.FieldError{Entity: c.env.Name, Field: "name", Message: "Environment name must be unique"})
	}
	return snap.Check(c.Update)
}

func (c *Create) Update(wc *config.WorkingCopy) error {
	wc.AddEnvironment(c.env)
	return nil
}

func (c *Create) Event(*config.Snapshot) *events.Event {
	return events.NewEvent(events.EventEnvironmentCreated,
		fmt.Sprintf("Added environment '%s'.", c.env.Name),
		map[string]string{events.MetaEnvironment: c.env.Name})
}
