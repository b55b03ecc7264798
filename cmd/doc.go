// Package cmd implements the command-line interface for the asd storage
// server. It provides a hierarchical command structure for running and
// configuring the server.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the storage server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See asd -help for a list of all commands.
package cmd
