// Package roster keeps the set of registered agents. Registrations and
// environment list changes are persisted to storage; heartbeats that do not
// change the list only refresh the in-memory last-seen time. Every change
// publishes an event so the reconciler can rebuild membership.
package roster
