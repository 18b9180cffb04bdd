package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Call timeouts. Discovery and window creation are bounded so a hung
// server never blocks a launch indefinitely; refresh gets a shorter
// bound because it is cosmetic.
const (
	commandTimeout = 5 * time.Second
	refreshTimeout = 2 * time.Second
)

// Byobu runs multiplexer operations by shelling out to the byobu
// binary. byobu is a thin wrapper over tmux, so the subcommands and
// error text are tmux's.
type Byobu struct {
	bin string
}

// Compile-time check that *Byobu implements Backend.
var _ Backend = (*Byobu)(nil)

// NewByobu returns a Backend backed by the byobu binary on PATH.
func NewByobu() *Byobu {
	return &Byobu{bin: "byobu"}
}

// run executes one byobu command with a time bound and classifies the
// failure modes the orchestrator cares about.
func (b *Byobu) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", b.classify(ctx, err, stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// classify maps a subprocess failure to a sentinel error. String
// matching against backend stderr happens only here; adding another
// multiplexer means adding another classifier, not touching callers.
func (b *Byobu) classify(ctx context.Context, err error, stderr string, args []string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return ErrNotInstalled
	}
	if ctx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}

	stderr = strings.TrimSpace(stderr)
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "no server running") ||
		strings.Contains(lower, "error connecting to") {
		return ErrNoServer
	}
	if strings.Contains(lower, "index") && strings.Contains(lower, "in use") {
		return fmt.Errorf("%w: %s", ErrWindowCollision, stderr)
	}

	if stderr != "" {
		return fmt.Errorf("byobu %s: %s", args[0], stderr)
	}
	return fmt.Errorf("byobu %s: %w", args[0], err)
}

// ListSessions returns existing session names. No running server means
// no sessions.
func (b *Byobu) ListSessions(ctx context.Context) ([]string, error) {
	out, err := b.run(ctx, commandTimeout, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// NewSession creates a detached session running command.
func (b *Byobu) NewSession(ctx context.Context, name, command string) error {
	_, err := b.run(ctx, commandTimeout, "new-session", "-d", "-s", name, command)
	return err
}

// NewWindow appends a named window to an existing session. The -a flag
// appends at the end and -k kills a stale window holding the name,
// which narrows (but does not close) the index-collision race.
func (b *Byobu) NewWindow(ctx context.Context, session, window, command string) error {
	_, err := b.run(ctx, commandTimeout, "new-window", "-a", "-k", "-t", session, "-n", window, command)
	return err
}

// RefreshClient redraws clients attached to the session so the new
// window becomes visible.
func (b *Byobu) RefreshClient(ctx context.Context, session string) error {
	_, err := b.run(ctx, refreshTimeout, "refresh-client", "-t", session)
	return err
}
