// Package auditlog appends a plain-text record of every executed
// command to a log directory. Write failures are reported to the
// caller for diagnostics but must never abort a launch.
package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileName is the audit log file inside the configured directory.
const FileName = "command_log.txt"

// Entry describes one launch for the audit trail.
type Entry struct {
	ScriptPath string
	Args       map[string]any
	PreCommand string
	Comment    string
	Session    string
	Command    string
}

// Write appends a formatted entry to logDir/command_log.txt, creating
// the directory if needed. An empty logDir disables auditing and
// returns nil.
func Write(logDir string, e Entry) error {
	if logDir == "" {
		return nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, FileName),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(format(e)); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// format renders the human-readable block the log accumulates.
// Arguments are sorted so entries diff cleanly.
func format(e Entry) string {
	banner := strings.Repeat("=", 80)
	rule := strings.Repeat("-", 80)

	var b strings.Builder
	line := func(s string) { b.WriteString(s); b.WriteByte('\n') }

	line(banner)
	line("Timestamp: " + time.Now().Format("2006-01-02 15:04:05"))
	line("Script: " + e.ScriptPath)
	if e.Comment != "" {
		line("Comment: " + e.Comment)
	}
	if e.PreCommand != "" {
		line("Pre-command: " + e.PreCommand)
	}
	line("Byobu Session: " + e.Session)
	line(rule)
	line("Arguments:")

	keys := make([]string, 0, len(e.Args))
	for k := range e.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line(fmt.Sprintf("  --%s: %v", k, e.Args[k]))
	}

	line(rule)
	line("Full Command:")
	line(e.Command)
	line(banner)
	line("")
	return b.String()
}
