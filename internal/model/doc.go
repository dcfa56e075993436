// Package model defines the domain types and value objects for the
// deployctl CLI.
//
// Build and start plans are transient: they are resolved from the
// environment and an optional deploy file at process start, used once,
// and discarded. There is no persistent state.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
// Exit codes of failing tools are forwarded verbatim through CLIError.Code.
package model
