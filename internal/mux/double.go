package mux

import (
	"context"
	"fmt"
	"sync"
)

// Double is an in-memory test double for the Backend interface. It
// implements the same contract as the real byobu wrapper but without
// subprocess overhead, and supports fault injection so orchestrator
// retry behavior can be exercised deterministically.
type Double struct {
	mu       sync.Mutex
	sessions map[string][]string // session name -> window names
	order    []string            // session names in creation order

	listErr    error
	sessionErr error
	windowErr  error
	refreshErr error

	// collideNext fails the next N NewWindow calls with
	// ErrWindowCollision before letting one succeed.
	collideNext int

	windowAttempts []string // every window name NewWindow was asked for
	refreshed      []string // sessions RefreshClient was called on
	commands       map[string]string
}

// Ensure Double implements Backend.
var _ Backend = (*Double)(nil)

// NewDouble creates an empty in-memory backend.
func NewDouble() *Double {
	return &Double{
		sessions: make(map[string][]string),
		commands: make(map[string]string),
	}
}

// AddSession pre-creates a session (for test setup).
func (d *Double) AddSession(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[name]; !ok {
		d.sessions[name] = nil
		d.order = append(d.order, name)
	}
}

// CollideTimes makes the next n NewWindow calls fail with
// ErrWindowCollision.
func (d *Double) CollideTimes(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collideNext = n
}

// FailWith injects errors into individual operations (for test setup).
func (d *Double) FailWith(list, session, window, refresh error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listErr, d.sessionErr, d.windowErr, d.refreshErr = list, session, window, refresh
}

func (d *Double) ListSessions(_ context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	names := make([]string, len(d.order))
	copy(names, d.order)
	return names, nil
}

func (d *Double) NewSession(_ context.Context, name, command string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sessionErr != nil {
		return d.sessionErr
	}
	if _, ok := d.sessions[name]; ok {
		return fmt.Errorf("duplicate session: %s", name)
	}
	d.sessions[name] = nil
	d.order = append(d.order, name)
	d.commands[name] = command
	return nil
}

func (d *Double) NewWindow(_ context.Context, session, window, command string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windowAttempts = append(d.windowAttempts, window)
	if d.windowErr != nil {
		return d.windowErr
	}
	if d.collideNext > 0 {
		d.collideNext--
		return fmt.Errorf("%w: create window failed: index in use", ErrWindowCollision)
	}
	windows, ok := d.sessions[session]
	if !ok {
		return fmt.Errorf("byobu new-window: session not found: %s", session)
	}
	for _, w := range windows {
		if w == window {
			return fmt.Errorf("%w: duplicate window: %s", ErrWindowCollision, window)
		}
	}
	d.sessions[session] = append(windows, window)
	d.commands[session+":"+window] = command
	return nil
}

func (d *Double) RefreshClient(_ context.Context, session string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refreshErr != nil {
		return d.refreshErr
	}
	d.refreshed = append(d.refreshed, session)
	return nil
}

// --- Test inspection helpers (not part of Backend) ---

// Windows returns the window names created in a session.
func (d *Double) Windows(session string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.sessions[session]))
	copy(out, d.sessions[session])
	return out
}

// WindowAttempts returns every window name NewWindow was asked to
// create, including failed attempts.
func (d *Double) WindowAttempts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.windowAttempts))
	copy(out, d.windowAttempts)
	return out
}

// Refreshed returns the sessions RefreshClient was called on.
func (d *Double) Refreshed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.refreshed))
	copy(out, d.refreshed)
	return out
}

// Command returns the command a session or session:window was started
// with.
func (d *Double) Command(key string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commands[key]
}

// SessionCount returns the number of sessions.
func (d *Double) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}
