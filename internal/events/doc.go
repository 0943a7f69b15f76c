// Package events forwards committed room and booking changes to a message
// bus through watermill. Publishing sits behind a circuit breaker so an
// unavailable bus costs one fast failure per request instead of a timeout.
package events
