// Package redis holds the Redis-backed collaborators: the shared session
// state mirror, the buzz-first tally and the cross-instance event relay.
//
// All operations go through a client instrumented with a metrics hook and
// a circuit breaker hook, so every command is measured and the process
// fails fast instead of piling up timeouts when Redis degrades.
package redis
