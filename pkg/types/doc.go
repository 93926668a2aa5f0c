/*
Package types defines the data structures shared by envgate packages.

# Environments

An Environment groups pipelines and agents. A pipeline belongs to at most one
environment; an agent may belong to several. Names are case-insensitive:
use SameName and NameKey rather than comparing strings directly.

Environments come in two flavours. Local environments (Origin == "") are
defined in the main configuration and are the only ones that commands may
edit. Config repositories contribute partial environments (Origin set to the
repository id) that are merged with the local definition of the same name.

# Agents

An Agent carries a self-reported, comma-separated environment list. The list
is advisory: names that do not match a declared environment are ignored when
membership is computed.

	agent := &types.Agent{ID: "a1", Environments: "uat, prod"}
	agent.EnvironmentList() // ["uat", "prod"]

# Jobs

JobPlan is the scheduler's unit of work; only its pipeline name matters for
environment routing.
*/
package types
