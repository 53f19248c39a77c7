// Command reqflow executes a declarative HTTP request and prints the decoded
// JSON response.
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd(os.Stdout, os.Stderr)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		return 1
	}

	return 0
}
