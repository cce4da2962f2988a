package main

import (
	"os"

	rewindcmder "github.com/loopworkco/rewind/cmd/rewind"
)

func main() {
	cmd := rewindcmder.NewRewindCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
