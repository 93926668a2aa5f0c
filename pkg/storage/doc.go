/*
Package storage provides BoltDB-backed persistence for envgate state.

The storage package implements the Store interface using bbolt. Records are
serialized as JSON into one bucket per kind:

	┌──────────────── <dataDir>/envgate.db ────────────────┐
	│  environments   key: lower-case name  → Environment   │
	│  config_repos   key: repository id    → repo parts    │
	│  pipelines      key: lower-case name  → display name  │
	│  agents         key: agent id         → Agent         │
	│  meta           config_hash           → content hash  │
	└───────────────────────────────────────────────────────┘

# Configuration records

The declarative configuration is written as a whole by SaveConfig. The
environment, config repository and pipeline buckets are dropped and rebuilt
inside one bbolt transaction, so a crash mid-write leaves the previous
record intact. LoadConfig returns ErrNotFound until the first save; callers
use that to decide whether to seed from a settings file.

# Agents

Agent records are upserted on registration and heartbeat:

	store, err := storage.NewBoltStore("/var/lib/envgate")
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.CreateAgent(&types.Agent{ID: "a1", Environments: "uat"})

GetAgent wraps ErrNotFound; test for it with errors.Is.
*/
package storage
