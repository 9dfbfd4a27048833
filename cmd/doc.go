// Package cmd implements the command-line interface for an openr node. It
// provides a hierarchical command structure with operations for running a
// node and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations against an area (get, set, dump, del)
//   - peer: Commands for managing an area's peer registry (add, del, dump)
//   - serve: Commands for starting and configuring an openr node
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See openr -help for a list of all commands.
package cmd
