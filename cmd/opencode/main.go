package main

import (
	"os"

	"github.com/RyanLisse/opencode-rs/internal/cmd"
)

func main() {
	os.Exit(run())
}

// run is separated from main so deferred cleanup happens before exit.
func run() int {
	app := cmd.NewApp()
	defer app.Shutdown()

	if err := cmd.NewRootCmd(app).Execute(); err != nil {
		return 1
	}
	return 0
}
