package command

import (
	"fmt"

	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/events"
	"github.com/cuemby/envgate/pkg/types"
)

// Update replaces the local definition of an environment, possibly renaming it
type Update struct {
	oldName string
	env     *types.Environment
	hash    string
}

// NewUpdate returns a command replacing oldName with env. hash is the
// EnvironmentHash the caller read and is required.
func NewUpdate(oldName string, env *types.Environment, hash string) *Update {
	return &Update{oldName: oldName, env: env.Clone(), hash: hash}
}

func (c *Update) Name() string   { return OpUpdate }
func (c *Update) Target() string { return c.oldName }

func (c *Update) IsValid(snap *config.Snapshot) error {
	if err := requireLocal(snap, c.oldName, "updated"); err != nil {
		return err
	}
	if err := checkHash(snap, c.oldName, c.hash, true); err != nil {
		return err
	}
	if !types.SameName(c.oldName, c.env.Name) {
		if parts := snap.RemoteParts(c.oldName); len(parts) > 0 {
			return config.NewValidationError(fmt.Sprintf(
				"Environment '%s' is partially defined in config repository %s and cannot be renamed.",
				c.oldName, remoteOrigins(snap, c.oldName)),
				config.FieldError{Entity: c.oldName, Field: "name", Message: "Environment defined in a config repository cannot be renamed"})
		}
		if snap.HasEnvironment(c.env.Name) {
			return config.NewValidationError(fmt.Sprintf("Environment '%s' already exists.", c.env.Name),
				config.FieldError{Entity: c.env.Name, Field: "name", Message: "Environment name must be unique"})
		}
	}
	return snap.Check(c.Update)
}

func (c *Update) Update(wc *config.WorkingCopy) error {
	if !wc.ReplaceEnvironment(c.oldName, c.env) {
		return config.NewNotFoundError(fmt.Sprintf("Environment '%s' not found.", c.oldName))
	}
	return nil
}

func (c *Update) Event(*config.Snapshot) *events.Event {
	return events.NewEvent(events.EventEnvironmentUpdated,
		fmt.Sprintf("Updated environment '%s'.", c.oldName),
		map[string]string{events.MetaEnvironment: c.env.Name})
}
