// Command interlock compiles, validates and runs CUE-described component
// systems under the symbolic coordination engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/interlock/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
