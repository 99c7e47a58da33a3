// Package cmd contains the command-line interface of ship.
// It provides the root command, which scans Docker Compose stacks and updates the outdated ones,
// and the notify-preview subcommand.
//
// Key components:
//   - rootCmd: Scans the named directories (or every subdirectory with -a), once or on a --schedule.
//   - notify-preview: Prints the notification template rendered against a sample run.
//   - RunConfig: Settings of one invocation.
//
// Usage examples:
//   - Run the CLI from main.go:
//     cmd.Execute()
//   - Update every stack below the working directory without asking:
//     ship -a -y
//
// The package wires the actions, stack, registry, compose, container, notifications and metrics
// packages together, using Cobra for CLI parsing and logrus for logging.
package cmd
