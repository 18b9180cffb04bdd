// Package launch provisions a multiplexer session or window and runs a
// composed command inside it. One launch is a bounded sequence of
// backend calls: discover sessions, pick a target, create the session
// or a fresh window, and a cosmetic client refresh. Window-name
// collisions are an expected race with concurrent launches and are
// retried with backoff up to a fixed ceiling.
package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scriptdeck/scriptdeck/internal/mux"
)

// DefaultSession is the session targeted when the caller does not name
// one.
const DefaultSession = "training"

// maxWindowAttempts bounds the collision retry loop.
const maxWindowAttempts = 5

// baseBackoff scales linearly per attempt: 500ms, 1s, 1.5s, 2s.
const baseBackoff = 500 * time.Millisecond

// Outcome reports which session/window received the command, or why
// provisioning failed. Ephemeral; returned to the caller only.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func failure(format string, args ...any) Outcome {
	return Outcome{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Launcher runs commands inside multiplexer sessions.
type Launcher struct {
	backend    mux.Backend
	scratchDir string
	logger     *zap.Logger

	// Test seams. sleep is swapped out so collision-retry tests run
	// instantly; now pins window-name generation.
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a Launcher writing helper scripts under scratchDir.
func New(backend mux.Backend, scratchDir string, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		backend:    backend,
		scratchDir: scratchDir,
		logger:     logger,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Launch runs command in a window of sessionName, creating the session
// if no session exists at all. When sessionName does not exist but
// other sessions do, the first existing session is reused rather than
// fragmenting terminals. The returned Outcome names the exact session
// and window used.
func (l *Launcher) Launch(ctx context.Context, command, sessionName string) Outcome {
	if sessionName == "" {
		sessionName = DefaultSession
	}

	script, err := l.writeHelperScript(command)
	if err != nil {
		return failure("Error writing launch script: %v", err)
	}
	// The helper script runs the command under set -e and then hands
	// the window over to an interactive shell so output stays visible.
	wrapped := fmt.Sprintf("bash '%s'; exec bash", script)

	sessions, err := l.backend.ListSessions(ctx)
	if err != nil {
		if errors.Is(err, mux.ErrNotInstalled) {
			return failure("byobu not found. Please install byobu: sudo apt-get install byobu")
		}
		// Discovery failures (including timeouts) degrade to "no
		// sessions": a fresh session is still a useful outcome.
		l.logger.Warn("session discovery failed", zap.Error(err))
		sessions = nil
	}

	target := selectTarget(sessions, sessionName)
	if target == "" {
		return l.createSession(ctx, sessionName, wrapped)
	}
	return l.createWindow(ctx, target, wrapped)
}

// selectTarget picks the session to receive the new window: the named
// session if it exists, else the first existing session, else none.
func selectTarget(sessions []string, want string) string {
	for _, s := range sessions {
		if s == want {
			return s
		}
	}
	if len(sessions) > 0 {
		return sessions[0]
	}
	return ""
}

func (l *Launcher) createSession(ctx context.Context, name, command string) Outcome {
	if err := l.backend.NewSession(ctx, name, command); err != nil {
		return l.backendFailure("Error creating session: %v", err)
	}
	l.logger.Info("created session", zap.String("session", name))
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Created new byobu session %q and started command", name),
	}
}

// createWindow adds a uniquely named window to target, retrying
// name/index collisions with linearly increasing backoff. The window
// name is time-seeded and never reused within one launch: retries
// append the attempt counter.
func (l *Launcher) createWindow(ctx context.Context, target, command string) Outcome {
	seed := l.now().UnixMilli()
	window := fmt.Sprintf("run_%d", seed)

	for attempt := 1; attempt <= maxWindowAttempts; attempt++ {
		err := l.backend.NewWindow(ctx, target, window, command)
		if err == nil {
			// Refresh is a UX nicety; a failure here never undoes a
			// created window.
			if rerr := l.backend.RefreshClient(ctx, target); rerr != nil {
				l.logger.Debug("client refresh failed", zap.Error(rerr))
			}
			l.logger.Info("created window",
				zap.String("session", target),
				zap.String("window", window),
			)
			return Outcome{
				Success: true,
				Message: fmt.Sprintf("Command started in new window %q of byobu session %q", window, target),
			}
		}

		if !errors.Is(err, mux.ErrWindowCollision) {
			return l.backendFailure("Error creating window: %v", err)
		}
		if attempt == maxWindowAttempts {
			return failure("Failed to create window after %d attempts: %v", maxWindowAttempts, err)
		}

		l.logger.Warn("window collision, retrying",
			zap.String("window", window),
			zap.Int("attempt", attempt),
		)
		l.sleep(baseBackoff * time.Duration(attempt))
		window = fmt.Sprintf("run_%d_%d", l.now().UnixMilli(), attempt)
	}

	// Unreachable: the loop always returns.
	return failure("Failed to create window after %d attempts", maxWindowAttempts)
}

// backendFailure maps backend sentinel errors to operator-facing
// messages, surfacing other backend error text verbatim.
func (l *Launcher) backendFailure(format string, err error) Outcome {
	switch {
	case errors.Is(err, mux.ErrNotInstalled):
		return failure("byobu not found. Please install byobu: sudo apt-get install byobu")
	case errors.Is(err, mux.ErrTimeout):
		return failure("Timeout while executing byobu command")
	default:
		return failure(format, err)
	}
}

// writeHelperScript persists the command to a per-launch executable
// script. The unique path keeps concurrent launches from clobbering
// each other's script before the backend reads it; the script removes
// itself on exit (not guaranteed if the shell is killed outright).
func (l *Launcher) writeHelperScript(command string) (string, error) {
	if err := os.MkdirAll(l.scratchDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(l.scratchDir, fmt.Sprintf("launch-%s.sh", uuid.NewString()))
	content := "#!/bin/bash\n" +
		"set -e\n" +
		"trap 'rm -f -- \"$0\"' EXIT\n" +
		"clear\n" +
		command + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
