/*
Package log provides structured logging for gplmt using zerolog.

The log package wraps zerolog to give every subsystem JSON or console
structured logging, without threading a logger through constructors that
don't otherwise need state. All logs include timestamps and support
filtering by severity.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("gplmt starting")

	nodeLog := log.WithNode("A")
	nodeLog.Info().Str("task", "hello").Msg("running task")

	runLog := log.WithRun("A", "hello", 1)
	runLog.Warn().Msg("tasklist timed out, cancelling")

# Context loggers

  - WithComponent: tag logs with a subsystem name (targets, connect, engine, node, testbed)
  - WithNode: tag logs with the node a task ran against
  - WithTasklist: tag logs with the tasklist definition name
  - WithRun: tag logs with node, task name, and run counter together, for
    the common case of correlating a log line with the .out/.err files
    written for that run

# Design

Global logger pattern: a single package-level zerolog.Logger, initialized
once in cmd/gplmt before the experiment driver starts. Component loggers
are child loggers created with .With() so call sites never repeat field
names. Never log the content of export-env values that came from the
process environment without knowing what they contain — callers are
responsible for not logging secrets through var_env.
*/
package log
