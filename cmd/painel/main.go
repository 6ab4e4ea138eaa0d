package main

import (
	"fmt"
	"os"

	"github.com/dmelo/painel/internal/cli"
	"github.com/dmelo/painel/internal/database"
	"github.com/dmelo/painel/pkg/version"
)

func main() {
	os.Exit(run())
}

// run executes the CLI and maps the failure kind to an exit code: 2 for
// auth/permission failures, 3 for not found, 1 otherwise.
func run() int {
	root := cli.NewRootCmd(version.GetVersion())
	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "painel: %v\n", err)
	switch database.KindOf(err) {
	case database.KindAuth, database.KindPermission:
		return 2
	case database.KindNotFound:
		return 3
	default:
		return 1
	}
}
