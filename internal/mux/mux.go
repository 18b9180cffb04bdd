// Package mux provides a wrapper for byobu/tmux session operations via
// subprocess. The Backend interface is the seam between the launch
// orchestrator and a concrete multiplexer: retry decisions are driven
// by the sentinel errors defined here, never by matching backend error
// text outside this package.
package mux

import (
	"context"
	"errors"
)

// ErrNotInstalled is returned when the multiplexer binary is missing.
var ErrNotInstalled = errors.New("byobu not found; please install byobu: sudo apt-get install byobu")

// ErrTimeout is returned when a backend call exceeds its time bound.
var ErrTimeout = errors.New("timeout while executing byobu command")

// ErrNoServer is returned when no multiplexer server is running.
// Callers treat it as "no sessions exist".
var ErrNoServer = errors.New("no multiplexer server running")

// ErrWindowCollision is returned when window creation fails because
// the window name or index is already taken. This is an expected,
// retryable condition: concurrent launches race against the same
// multiplexer server.
var ErrWindowCollision = errors.New("window index already in use")

// Backend abstracts the terminal multiplexer. Implementations must
// classify failures into the sentinel errors above so the orchestrator
// can retry collisions without knowing any backend's error text.
type Backend interface {
	// ListSessions returns the names of existing sessions. A missing
	// server yields an empty list, not an error.
	ListSessions(ctx context.Context) ([]string, error)

	// NewSession creates a detached session running command.
	NewSession(ctx context.Context, name, command string) error

	// NewWindow creates a named window in an existing session running
	// command. Returns ErrWindowCollision when the name or index is
	// already taken.
	NewWindow(ctx context.Context, session, window, command string) error

	// RefreshClient redraws any client attached to the session. Purely
	// cosmetic; callers ignore failures.
	RefreshClient(ctx context.Context, session string) error
}
