// Package internal contains shared types and utilities for disposable.
//
// It provides configuration loading, logging setup, session prefixes, cleanup
// orchestration, and the output abstractions used by the command line.
package internal
