package main

import (
	"os"

	"github.com/bnema/schedule-from-videos/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
