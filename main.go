package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/toolparam/toolparam/cmd"
	"github.com/toolparam/toolparam/internal/adapter"
	"github.com/toolparam/toolparam/internal/logging"
	"github.com/toolparam/toolparam/internal/submit"
)

func main() {
	// Logging flags are read ahead of cobra.
	isVerbose := false
	logFilePath := logging.DefaultLogFile()

	for i, arg := range os.Args {
		if arg == "--verbose" || arg == "-v" {
			isVerbose = true
		}
		if arg == "--log-file" && i+1 < len(os.Args) {
			logFilePath = os.Args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, "--log-file="); ok {
			logFilePath = v
		}
	}

	err := logging.ConfigureGlobalLogger(isVerbose, logFilePath)
	if err != nil {
		// Fallback to basic stderr if logger setup fails
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	cmd.SetDependencies(&cmd.AppDependencies{
		Registry: adapter.DefaultRegistry(),
		Runner:   submit.ExecRunner{},
	})

	log.Debug().Strs("args", os.Args[1:]).Msg("Starting toolparam")
	cmd.Execute()
}
