package main

import (
	"os"

	"github.com/leandeep/marker-engine/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
