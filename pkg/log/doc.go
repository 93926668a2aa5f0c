/*
Package log provides structured logging for envgate using zerolog.

The package wraps a single global zerolog.Logger. Long-lived components
(config store, roster, reconciler, manager) derive a child logger once with
WithComponent and attach per-call context such as the environment name or
agent id.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Level filters messages below the threshold (debug, info, warn, error;
unknown values fall back to info). JSONOutput selects machine-readable JSON
over zerolog's console writer.

# Usage

	logger := log.WithComponent("reconciler")
	logger.Info().
		Uint64("generation", idx.Generation()).
		Int("environments", len(idx.EnvironmentNames())).
		Msg("Published membership index")

	agentLog := log.WithAgentID("A1")
	agentLog.Warn().Msg("Ignoring self-reported environment")

Before Init is called the global logger writes JSON to stdout, so packages
can log from tests without extra setup.
*/
package log
