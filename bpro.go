package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	flags "github.com/jessevdk/go-flags"
)

const (
	appName = "bpro"

	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// version returns the application version as a semantic version string.
func version() string {
	return fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
}

// errInterrupted is returned when a signal stopped the running command.
var errInterrupted = errors.New("interrupted")

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := bproMain(); err != nil {
		// go-flags already printed its own errors.
		var ferr *flags.Error
		if !errors.As(err, &ferr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// bproMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func bproMain() error {
	cfg, cmds, command, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	logFile := filepath.Join(cfg.LogDir, cfg.activeNet.Name,
		defaultLogFilename)
	if err := initLogRotator(logFile); err != nil {
		return err
	}
	defer logRotator.Close()

	log.Infof("Version %s (%s), running %q", version(), cfg.activeNet.Name,
		command)

	// Signals are caught from here on, so a profile opened by the command
	// is closed cleanly on shutdown.
	addInterruptHandler(func() {})

	done := make(chan error, 1)
	go func() {
		done <- runCommand(cfg, cmds, command)
	}()

	select {
	case err := <-done:
		return err
	case <-interruptHandlersDone:
		return errInterrupted
	}
}
