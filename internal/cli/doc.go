// Package cli implements the readany command line.
//
// Every command loads the configuration in the root PersistentPreRunE (after
// reading an optional .env file), then opens an engine for the duration of
// the command. Results go to stdout; logs and progress bars go to stderr.
package cli
