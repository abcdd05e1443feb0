// Command nodecheck runs checking jobs against tree-structured documents.
package main

import (
	"os"

	"github.com/roach88/nodecheck/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
