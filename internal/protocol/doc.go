// Package protocol defines the real-time wire format: the message
// envelope shared by both directions, the closed set of client events,
// and the server event names. Client messages decode into a tagged
// variant type so unknown events are rejected at the decode boundary.
package protocol
