package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scriptdeck/scriptdeck/internal/browse"
	"github.com/scriptdeck/scriptdeck/internal/compose"
	"github.com/scriptdeck/scriptdeck/internal/launch"
	"github.com/scriptdeck/scriptdeck/internal/logging"
	"github.com/scriptdeck/scriptdeck/internal/mux"
)

var runFlags struct {
	args       []string
	preCommand string
	comment    string
	session    string
	scratchDir string
	dryRun     bool
}

var runCmd = &cobra.Command{
	Use:   "run <script.py>",
	Short: "Launch a script in a byobu session",
	Long: `Compose a command from the given argument values and launch it in a
byobu session. Values are passed as repeated --arg name=value flags; a
value of "true" emits a bare flag.

  scriptdeck run train.py --arg input=data.txt --arg count=5 --arg verbose=true

Use --dry-run to print the composed command without launching it.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runFlags.args, "arg", nil, "argument as name=value (repeatable)")
	runCmd.Flags().StringVar(&runFlags.preCommand, "pre-command", "", "shell statements to run before the script")
	runCmd.Flags().StringVar(&runFlags.comment, "comment", "", "comment line prefixed to the command")
	runCmd.Flags().StringVar(&runFlags.session, "session", launch.DefaultSession, "byobu session name")
	runCmd.Flags().StringVar(&runFlags.scratchDir, "scratch-dir", os.TempDir(), "directory for launch helper scripts")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "print the command instead of launching")
}

func runRun(cmd *cobra.Command, cmdArgs []string) error {
	script := browse.Expand(cmdArgs[0])
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("script not found: %s", script)
	}

	var args []compose.Arg
	for _, pair := range runFlags.args {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --arg %q: expected name=value", pair)
		}
		args = append(args, compose.Arg{Name: name, Value: coerce(value)})
	}

	command, err := compose.Command(script, args, runFlags.preCommand, runFlags.comment)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), command)
		return nil
	}

	launcher := launch.New(mux.NewByobu(), runFlags.scratchDir, logging.New(false))
	outcome := launcher.Launch(cmd.Context(), command, runFlags.session)
	fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
	if !outcome.Success {
		return errors.New("launch failed")
	}
	return nil
}

// coerce maps the literal strings true/false to booleans so bare flags
// can be requested from the command line; everything else stays a
// string.
func coerce(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	default:
		return value
	}
}
