// Package game is the application layer: it orchestrates session
// lifecycle, question advancement and buzz arbitration across the
// repositories, the arbiter and the fan-out hub. The HTTP and WebSocket
// layers talk to it through domain.GameService only.
package game
