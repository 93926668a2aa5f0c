// Package command implements the environment changes accepted by
// config.Store.Commit: Create, Update, Patch and Delete. Each validates
// itself against the current snapshot (existence, optimistic-concurrency
// hash, config repository ownership, and the structural checks of
// config.Validate on the simulated result) before the store applies it to a
// working copy.
package command
