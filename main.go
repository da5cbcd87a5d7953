package main

import (
	"os"

	"github.com/hearth-panel/hearth-ctl/cmd"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
