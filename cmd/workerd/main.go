// Command workerd is the worker-runtime node binary: it builds the cobra
// command tree in internal/cli and executes it, the same thin
// main-delegates-to-cli shape the teacher's binaries use.
package main

import (
	"fmt"
	"os"

	"github.com/embercore/workerrt/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
