package main

import (
	"os"

	"shutterbox/cmd/shutterctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
