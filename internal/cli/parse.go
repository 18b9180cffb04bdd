package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scriptdeck/scriptdeck/internal/argspec"
	"github.com/scriptdeck/scriptdeck/internal/browse"
)

var parseCmd = &cobra.Command{
	Use:   "parse <script.py>",
	Short: "Print a script's inferred argument schema as JSON",
	Long: `Infer a Python script's argparse interface by scanning its source
and print the parameter schema as JSON. The script is never executed.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	path := browse.Expand(args[0])
	params, err := argspec.ExtractFile(path)
	if err != nil {
		return err
	}
	if params == nil {
		params = []argspec.Parameter{}
	}
	out, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
