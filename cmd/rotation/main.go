package main

import (
	"os"

	"rotation/cmd/rotation/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
