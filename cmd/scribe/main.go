// Command scribe transcribes an audio file into a project directory.
//
//	scribe <audioFile> <modelSize> [--output-root ./public]
//
// On success the project directory is printed as PROJECT_DIR:<path>. A
// failing stage exits with status 1, a usage error with status 2.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrWong99/scribe/internal/config"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &environment{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		getenv:     os.Getenv,
		registerFn: registerEngines,
	}
	return execute(ctx, env, os.Args[1:])
}

// environment carries everything a command touches outside the process.
type environment struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	// registerFn installs the engine factories.
	registerFn func(*config.Registry, engineDeps)
}

// execute runs the command line args and returns the exit code.
func execute(ctx context.Context, env *environment, args []string) int {
	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(env.stderr, "scribe: %v\n\n%s", ue.err, ue.usage)
		return exitUsage
	}
	var fe *failure
	if errors.As(err, &fe) {
		// Already logged by the failing stage.
		return exitFailure
	}
	fmt.Fprintf(env.stderr, "scribe: %v\n", err)
	return exitFailure
}

// usageError marks errors caused by a malformed command line.
type usageError struct {
	err   error
	usage string
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// failure wraps an error that has already been reported to the log.
type failure struct{ err error }

func (e *failure) Error() string { return e.err.Error() }
func (e *failure) Unwrap() error { return e.err }
