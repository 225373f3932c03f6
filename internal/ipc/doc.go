// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Payloads
// reuse the HTTP API types from internal/api so both transports describe
// sessions, result fields and events identically. Errors cross the socket as
// plain strings; the client restores their fault markers so callers can keep
// classifying them with errors.Is.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
