package command

import (
	"fmt"
	"strings"

	"github.com/cuemby/envgate/pkg/config"
)

// Operation names
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpPatch  = "patch"
	OpDelete = "delete"
)

// requireLocal fails unless name is defined in the main configuration.
// Environments that only exist in config repositories cannot be edited.
func requireLocal(snap *config.Snapshot, name, action string) error {
	if _, ok := snap.LocalEnvironment(name); ok {
		return nil
	}
	if snap.HasEnvironment(name) {
		return config.NewValidationError(fmt.Sprintf(
			"Environment '%s' is defined in config repository %s and cannot be %s.",
			name, remoteOrigins(snap, name), action))
	}
	return config.NewNotFoundError(fmt.Sprintf("Environment '%s' not found.", name))
}

// checkHash compares the caller's hash with the current merged environment.
// An empty hash is accepted when the hash is optional.
func checkHash(snap *config.Snapshot, name, hash string, required bool) error {
	if hash == "" && !required {
		return nil
	}
	current, _ := snap.EnvironmentHash(name)
	if hash != current {
		return config.NewConflictError(fmt.Sprintf(
			"Someone has modified the configuration for Environment '%s'. Please update your copy of the config with the changes and try again.",
			name))
	}
	return nil
}

func remoteOrigins(snap *config.Snapshot, name string) string {
	var ids []string
	for _, part := range snap.RemoteParts(name) {
		ids = append(ids, "'"+part.Origin+"'")
	}
	return strings.Join(ids, ", ")
}

var (
	_ config.Command = (*Create)(nil)
	_ config.Command = (*Update)(nil)
	_ config.Command = (*Patch)(nil)
	_ config.Command = (*Delete)(nil)
)
