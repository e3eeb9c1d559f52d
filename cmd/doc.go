// Package cmd implements the command-line interface of dSuspend. The engine itself
// is a library, the CLI drives it in-process to measure and verify its behavior.
//
// The package is organized into several subpackages:
//
//   - perf: Benchmarks of the single operations and the concurrent load scenario
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set with an environment variable DSUSPEND_<flag>
// (e.g. DSUSPEND_LOG_LEVEL=debug), .env and .env.local files are loaded on startup.
//
// See dsuspend -help for a list of all commands.
package cmd
