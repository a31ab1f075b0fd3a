// Package shellrun is the engine's ShellFunc implementation: it parses a
// recipe command line with mvdan.cc/sh/v3's portable shell grammar and runs
// it through that module's own interpreter rather than shelling out to
// /bin/sh, so a recipe behaves the same on every platform the Go toolchain
// targets.
package shellrun

import (
	"context"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/obuild/obuild/internal/obslog"
)

var defaultExecHandler = interp.DefaultExecHandler(0)

// execHandler routes a handful of commands through Go's own os package
// instead of forking a subprocess, so recipes that write "rm"/"mkdir" keep
// working on platforms without those binaries on PATH.
func execHandler(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return defaultExecHandler(ctx, args)
	}

	switch args[0] {
	case "mkdir":
		return mkdir(args[1:])
	case "rm":
		return remove(args[1:])
	}
	return defaultExecHandler(ctx, args)
}

func mkdir(args []string) error {
	parents := false
	var dirs []string
	for _, a := range args {
		if a == "-p" {
			parents = true
			continue
		}
		dirs = append(dirs, a)
	}
	for _, dir := range dirs {
		if parents {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.Mkdir(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func remove(args []string) error {
	recursive := false
	var targets []string
	for _, a := range args {
		if a == "-r" || a == "-rf" || a == "-f" {
			recursive = recursive || a != "-f"
			continue
		}
		targets = append(targets, a)
	}
	for _, t := range targets {
		var err error
		if recursive {
			err = os.RemoveAll(t)
		} else {
			err = os.Remove(t)
		}
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}
	return defaultOpenHandler(ctx, path, flag, perm)
}

// Run parses cmdline and executes it, returning the shell's exit code. A
// parse failure or a runner-construction failure is reported as exit code
// 1 after being logged, matching the fail-stop-at-the-target discipline the
// rest of the engine follows: the barrier only ever sees an exit code.
func Run(ctx context.Context, cmdline string) int {
	parsed, err := syntax.NewParser().Parse(strings.NewReader(cmdline), "<recipe>")
	if err != nil {
		obslog.Logger(ctx).Error().Err(err).Str("cmdline", cmdline).Msg("failed to parse recipe command")
		return 1
	}

	runner, err := interp.New(
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
	)
	if err != nil {
		obslog.Logger(ctx).Error().Err(err).Msg("failed to initialize shell runner")
		return 1
	}

	if err := runner.Run(ctx, parsed); err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return int(status)
		}
		obslog.Logger(ctx).Error().Err(err).Str("cmdline", cmdline).Msg("recipe command failed")
		return 1
	}
	return 0
}
