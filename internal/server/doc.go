// Package server is the transport edge: the echo HTTP server with the
// host control API, health probes and the WebSocket endpoint that feeds
// the hub. Handlers depend on domain.GameService and never reach into
// storage directly.
package server
