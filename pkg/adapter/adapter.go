package adapter

import "context"

// Adapter is a network front end managed by the mediaforge server.
//
// Lifecycle:
//  1. Creation: the adapter is built from its configuration and collaborators
//  2. Startup: Serve() binds the listener and blocks until shutdown
//  3. Shutdown: Stop() drains connections within the shutdown timeout
//
// Stop may be called concurrently with Serve and more than once.
type Adapter interface {
	// Serve starts the server and blocks until ctx is cancelled, Stop is
	// called, or an unrecoverable error occurs.
	//
	// Returns nil on graceful shutdown and an error when startup fails or
	// connections had to be force-closed.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits for active connections
	// until ctx expires.
	Stop(ctx context.Context) error

	// Protocol returns the name used in logs and metrics.
	Protocol() string

	// Port returns the bound TCP port, or the configured one before the
	// listener is ready.
	Port() int
}
