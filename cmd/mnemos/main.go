package main

import (
	"os"

	"github.com/mnemos-io/mnemos/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
