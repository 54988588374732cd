// Command depupdate checks for, and applies, updates to executables
// installed from a cargo registry or git checkout.
package main

import (
	"os"

	"github.com/sofmeright/depupdate/internal/cli"
)

func main() {
	err := cli.Execute()
	os.Exit(cli.ExitCode(err))
}
