package main

import (
	"os"

	"github.com/bethatfriend/bethatfriend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
