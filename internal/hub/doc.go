// Package hub implements the WebSocket connection registry and session
// fan-out using the actor pattern.
//
// A single goroutine consuming a tagged command channel owns all maps
// (no mutexes), so subscription changes and broadcasts are totally
// ordered. Per-connection write goroutines absorb slow clients; a client
// whose send buffer fills is disconnected rather than stalling fan-out.
package hub
