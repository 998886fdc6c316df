package main

import (
	"os"

	"github.com/chameleon-systems/chameleon/cmd/chameleonctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
