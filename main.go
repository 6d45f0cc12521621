package main

import (
	"os"

	"github.com/Krosnoz/dialogue/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
