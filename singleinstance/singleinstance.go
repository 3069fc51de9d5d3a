// Package singleinstance makes the resident process discoverable over TCP
// loopback so later invocations delegate instead of starting a second
// resident. The protocol is line-based: PING answers PONG for liveness,
// ACTIVATE asks the resident to bring up the capture overlay.
package singleinstance

import (
	"context"
)

// Server owns the loopback endpoint and surfaces activation requests.
type Server interface {
	// Start binds the first port of the configured range and begins
	// accepting. A bind failure means another resident already owns it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 before Start.
	Port() int
	// Next blocks until a client requests activation, or ctx ends.
	Next(ctx context.Context) (Conn, error)
	// Close stops accepting and releases the port.
	Close() error
}

// Conn is one pending activation request.
type Conn interface {
	// Ack confirms the activation reached the event loop.
	Ack() error
	// Reject reports a human-readable failure to the client.
	Reject(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Client delegates activation to a resident if one is listening.
type Client interface {
	// TryActivate scans the configured port range for a resident and asks
	// it to activate. delegated=false with err=nil means no resident found.
	TryActivate(ctx context.Context) (delegated bool, err error)
}

// NewServer returns the TCP implementation.
func NewServer() Server { return newTCPServer() }

// NewClient returns the TCP implementation.
func NewClient() Client { return newTCPClient() }
