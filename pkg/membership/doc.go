/*
Package membership builds and queries the environment membership index.

An Index maps each environment to its pipelines and member agents, and
holds the inverse lookups pipeline → environment and agent → environments.
It is built in one pass by Build and never changes afterwards, so readers
can share it without locks; a new configuration or roster produces a new
Index.

# Membership rule

An agent belongs to environment E when E lists the agent (declared) or the
agent's self-reported environment list names E and E is declared
(self-reported). The two sources are unioned: an agent leaves E only when
neither claims it. Self-reported names that are malformed or undeclared
are reported by Skipped and otherwise ignored.

# Routing rule

	m := idx.Matcher()
	m.Match("deploy-prod", agentID)

A pipeline owned by E is routable only to members of E. A pipeline owned by
no environment is routable only to agents that belong to no environment.
*/
package membership
