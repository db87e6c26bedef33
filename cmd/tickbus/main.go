package main

import (
	"os"

	"github.com/dmitrymomot/tickbus/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
