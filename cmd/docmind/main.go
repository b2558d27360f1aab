package main

import (
	"os"

	"github.com/nevindra/docmind/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
