// Package main hosts the barscan CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into IPC calls against
// the daemon, runs foreground scans without a daemon, lists cameras and
// their capabilities, and scaffolds configuration. Configuration loading and
// socket discovery live here so subcommands only render results.
package main
