// Package domain holds the core model of the quiz competition server:
// sessions and their lifecycle, questions, participants, buzz results,
// and the repository interfaces the adapters implement.
package domain
