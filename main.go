package main

import (
	"os"

	"github.com/hadichaudhri/trackerscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
