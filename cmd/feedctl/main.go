package main

import (
	"os"

	"feedstream/aggregator/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
