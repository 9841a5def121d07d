// Command nimbus manages packages, bindings and actions and invokes them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/nimbus/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(cli.NormalizeArgs(os.Args[1:]))

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
