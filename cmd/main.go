package main

import (
	"os"

	"github.com/yakoovad/tabletop-hub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
