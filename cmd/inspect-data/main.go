// Package main is the entry point for the inspect-data binary.
package main

import (
	"os"

	"github.com/graphnet-team/datainspect/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
