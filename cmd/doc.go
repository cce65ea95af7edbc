// Package cmd implements the command-line interface of ddbx. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - item: Commands for item and table operations (put, get, query, scan, etc.)
//   - serve: Commands for starting and configuring the ddbx server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See ddbx -help for a list of all commands.
package cmd
