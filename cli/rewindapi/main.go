package main

import (
	"os"

	servecmder "github.com/loopworkco/rewind/cmd/rewind/serve"
)

// rewindapi is a standalone daemon binary carrying only the serve
// command, for deployments that do not need the full CLI.
func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "rewindapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .rewind/ directory location")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
