package command

import (
	"fmt"

	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/events"
)

// Delete removes a local environment
type Delete struct {
	name string
	hash string
}

// NewDelete returns a command deleting name. A non-empty hash must match
// the current EnvironmentHash.
func NewDelete(name, hash string) *Delete {
	return &Delete{name: name, hash: hash}
}

func (c *Delete) Name() string   { return OpDelete }
func (c *Delete) Target() string { return c.name }

func (c *Delete) IsValid(snap *config.Snapshot) error {
	if err := requireLocal(snap, c.name, "deleted"); err != nil {
		return err
	}
	if parts := snap.RemoteParts(c.name); len(parts) > 0 {
		return config.NewValidationError(fmt.Sprintf(
			"Environment '%s' is partially defined in config repository %s and cannot be deleted.",
			c.name, remoteOrigins(snap, c.name)))
	}
	if err := checkHash(snap, c.name, c.hash, false); err != nil {
		return err
	}
	return snap.Check(c.Update)
}

func (c *Delete) Update(wc *config.WorkingCopy) error {
	if !wc.RemoveEnvironment(c.name) {
		return config.NewNotFoundError(fmt.Sprintf("Environment '%s' not found.", c.name))
	}
	return nil
}

func (c *Delete) Event(*config.Snapshot) *events.Event {
	return events.NewEvent(events.EventEnvironmentDeleted,
		fmt.Sprintf("Environment '%s' was deleted successfully.", c.name),
		map[string]string{events.MetaEnvironment: c.name})
}
