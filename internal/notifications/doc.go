// Package notifications pushes scanner milestones to ntfy.
//
// The Service publishes a small set of enumerated events (completed
// acquisitions, a camera that stopped delivering frames, a test ping) to the
// topic configured under [notifications]. Without a topic it is a no-op.
// Sink adapts the service to the daemon's activity hub so notifications
// follow the same event stream as history and the event API.
package notifications
