// Command obuild drives an obuild.cfg definition file: a Starlark-hosted,
// Make-inspired build graph (internal/engine) with shell recipes executed
// through mvdan.cc/sh (internal/shellrun).
package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/obuild/obuild/internal/engine"
	"github.com/obuild/obuild/internal/obslog"
	"github.com/obuild/obuild/internal/script"
	"github.com/obuild/obuild/internal/shellrun"
)

var (
	flagChangeDir  string
	flagFile       string
	flagExecute    string
	flagJobs       int
	flagIgnoreEnv  bool
	flagNoProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "obuild [action]",
	Short: "A Make-inspired build engine driven by a Starlark definition file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagChangeDir, "change-directory", "C", "", "change to DIR before doing anything else")
	rootCmd.Flags().StringVarP(&flagFile, "file", "f", "obuild.cfg", "the definition file to evaluate")
	rootCmd.Flags().StringVarP(&flagExecute, "execute", "e", "", "evaluate STR before the definition file")
	rootCmd.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "number of worker goroutines (0: use numcpus)")
	rootCmd.Flags().BoolVarP(&flagIgnoreEnv, "ignore-env", "E", false, "make getenv() always return its default")
	rootCmd.Flags().BoolVar(&flagNoProgress, "no-progress", false, "disable the progress bar")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Every error path below logs its error itself; keep cobra from
	// printing it a second time.
	cmd.SilenceErrors = true
	logger := zerolog.New(NewConsoleWriter())
	ctx := obslog.WithLogger(context.Background(), &logger)

	if flagChangeDir != "" {
		if err := os.Chdir(flagChangeDir); err != nil {
			logger.Error().Err(err).Str("dir", flagChangeDir).Msg("failed to change directory")
			return err
		}
	}

	// The original's "-j" semantics: a zero or omitted value falls back to
	// numcpus, and the result is then clamped to at least one (see
	// SPEC_FULL.md §6.5 — both rules apply, not just the clamp).
	jobs := flagJobs
	if jobs == 0 {
		jobs = runtime.NumCPU()
	}
	if jobs < 1 {
		jobs = 1
	}

	projectRoot, err := os.Getwd()
	if err != nil {
		logger.Error().Err(err).Msg("failed to determine the project root")
		return err
	}

	eng := engine.New(jobs, func(shellCtx context.Context, cmdline string) int {
		return shellrun.Run(shellCtx, cmdline)
	})
	defer eng.Close()

	filename := flagFile
	if _, err := os.Stat(filename); err != nil && flagExecute == "" {
		logger.Error().Err(err).Str("file", filename).Msg("definition file not found")
		return err
	}

	err = script.Run(ctx, eng, script.Options{
		Filename:    filename,
		Execute:     flagExecute,
		ProjectRoot: projectRoot,
		Jobs:        jobs,
		IgnoreEnv:   flagIgnoreEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed creating rules")
		return err
	}

	action := "default"
	if len(args) > 0 {
		action = args[0]
	}

	stopProgress := startProgress(eng.Pool())
	code, err := eng.ExecMain(ctx, action)
	stopProgress()

	if err != nil {
		logger.Error().Err(err).Str("action", action).Msg("build failed")
		return err
	}
	if code != 0 {
		err := eris.Errorf("build failed with exit code %d", code)
		logger.Error().Str("action", action).Msg(err.Error())
		return err
	}
	return nil
}

// startProgress renders a job counter against the worker pool's outstanding
// task count, giving Pool.Outstanding() a real consumer beyond its own
// tests. It is a no-op when stderr isn't a terminal or --no-progress was
// given, the same CI-aware suppression idiom the teacher applies to its own
// progress bar.
func startProgress(pool *engine.Pool) func() {
	if flagNoProgress || !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("building"),
		progressbar.OptionSpinnerType(14),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bar.Set(pool.Outstanding())
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		bar.Finish()
	}
}
