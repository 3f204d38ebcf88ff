// Package postgres implements the durable repositories: session and
// question content plus the append-only buzz audit log. Migrations run
// in-process at startup under an advisory lock.
package postgres
