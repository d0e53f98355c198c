package main

import (
	"os"

	"github.com/twaquant/etfengine/cmd/etfengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
