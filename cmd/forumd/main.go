package main

import (
	"os"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
