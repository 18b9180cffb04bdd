// scriptdeck launches scripts with inferred arguments inside byobu
// sessions, either from the command line or via its HTTP server.
package main

import (
	"os"

	"github.com/scriptdeck/scriptdeck/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
