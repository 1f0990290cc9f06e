package main

import (
	"os"

	"github.com/openvetdata/vetdw/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
