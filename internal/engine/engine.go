package engine

import (
	"context"
	"os"
	"time"

	"github.com/obuild/obuild/internal/obslog"
)

// ShellFunc runs a shell command line and returns its exit code. The host's
// "system" facility is injected rather than hardcoded, since the spec
// treats command execution as something the embedding host provides (see
// DESIGN.md).
type ShellFunc func(ctx context.Context, cmdline string) int

// Engine is the long-lived build graph: the rule registry, the resolver
// cache, and the worker pool all live here for the process's lifetime.
type Engine struct {
	rules        []*Rule
	resolveCache map[string]resolveEntry
	pool         *Pool
	runShell     ShellFunc
}

// New constructs an Engine backed by a pool of jobs worker goroutines and
// the given shell executor.
func New(jobs int, shell ShellFunc) *Engine {
	return &Engine{
		resolveCache: make(map[string]resolveEntry),
		pool:         NewPool(jobs),
		runShell:     shell,
	}
}

// Close shuts down the engine's worker pool, joining every worker.
func (e *Engine) Close() {
	e.pool.Destroy()
}

// Pool exposes the engine's worker pool, mainly so a CLI can report
// outstanding task counts for progress display.
func (e *Engine) Pool() *Pool { return e.pool }

// RuleCount reports how many rules have been registered, so a script host
// can detect an empty definition file after evaluation.
func (e *Engine) RuleCount() int { return len(e.rules) }

// ExecMain drives target for a fresh top-level invocation: it creates the
// top barrier, resolves and executes target, and blocks until every task
// that invocation enqueued (directly or transitively) has completed.
func (e *Engine) ExecMain(ctx context.Context, target string) (int, error) {
	top := NewBarrier()
	ret, err := e.ExecRule(ctx, target, "", top)
	if err != nil {
		top.Wait()
		return 1, err
	}
	return top.WaitResult(ret), nil
}

// ExecRule resolves target and, if it matches a rule, drives its build
// (dependency walk + recipe). parent is the barrier that target's own
// recipe's shell invocations should attach to (the caller's active
// dependency-walk barrier); from is the target that needed this one, used
// only for error context.
func (e *Engine) ExecRule(ctx context.Context, target, from string, parent *Barrier) (int, error) {
	rlist, err := e.FindRules(target)
	if err != nil {
		return 1, err
	}

	isAction := len(rlist) == 1 && rlist[0].Rule.Action

	// A rule set with no recipe-bearing member can't produce target itself
	// (it only contributes dependencies). Its dependencies are still driven,
	// and their failure is returned as is; once they succeed, such a match
	// is only useful if target already exists as a file. This extends
	// find_rules' own "no match" case to "no usable match".
	if !isAction && !hasRecipe(rlist) && !fileReadable(target) {
		code, err := e.execFunc(ctx, target, rlist, parent, isAction)
		if err != nil || code != 0 {
			return code, err
		}
		return 1, errNoRule(target, from)
	}

	return e.execFunc(ctx, target, rlist, parent, isAction)
}

// execFunc implements the per-target walk-then-run sequence: it pushes a
// fresh barrier for target's own dependency walk, recurses into each dep in
// declaration order, waits for that subtree's shell work to drain, then
// decides (via checkExec, always true for an action) whether to run the
// selected recipe.
func (e *Engine) execFunc(ctx context.Context, target string, rlist []SubRule, parent *Barrier, isAction bool) (int, error) {
	depBarrier := NewBarrier()
	subdeps := make([]string, 0)
	var depErr error

	ret := func() int {
		for _, sr := range rlist {
			for _, depPattern := range sr.Rule.Deps {
				dep := sr.expandDep(depPattern)
				subdeps = append(subdeps, dep)

				code, err := e.ExecRule(ctx, dep, target, depBarrier)
				if err != nil {
					depErr = err
					return 1
				}
				if code != 0 {
					return code
				}
			}
		}
		return 0
	}()

	code := depBarrier.WaitResult(ret)
	if code != 0 {
		return code, depErr
	}

	recipeRule := firstRecipe(rlist)
	if recipeRule == nil {
		return 0, nil
	}

	if !isAction && !checkExec(target, subdeps) {
		obslog.Logger(ctx).Debug().Str("target", target).Msg("up to date")
		return 0, nil
	}

	obslog.Logger(ctx).Debug().Str("target", target).Msg("building")

	// By the time a recipe runs, its own dependency-walk barrier
	// (depBarrier) has already been waited on and is no longer "current":
	// shell calls from the recipe attach to parent, the nearest ancestor
	// rule whose own dependency walk is still in progress.
	rc := &RecipeContext{
		Ctx:     ctx,
		Target:  target,
		engine:  e,
		barrier: parent,
	}
	if len(subdeps) > 0 {
		rc.Source = subdeps[0]
		rc.Sources = joinSpace(subdeps)
	}

	return recipeRule.Recipe.Run(rc)
}

func joinSpace(items []string) string {
	out := items[0]
	for _, s := range items[1:] {
		out += " " + s
	}
	return out
}

// checkExec reports whether target must be (re)built: true if the target
// file is missing, any dep file is missing, the target's mtime is zero, or
// some dep's mtime is newer than the target's.
func checkExec(target string, deps []string) bool {
	if !fileReadable(target) {
		return true
	}
	for _, dep := range deps {
		if !fileReadable(dep) {
			return true
		}
	}
	return checkTimestamps(target, deps)
}

func checkTimestamps(target string, deps []string) bool {
	tts := modTime(target)
	if tts.IsZero() {
		return true
	}
	for _, dep := range deps {
		sts := modTime(dep)
		if !sts.IsZero() && tts.Before(sts) {
			return true
		}
	}
	return false
}

func modTime(name string) time.Time {
	info, err := os.Stat(name)
	if err != nil || !info.Mode().IsRegular() {
		return time.Time{}
	}
	return info.ModTime()
}

// hasRecipe reports whether any SubRule in rlist carries a recipe. A match
// list made up entirely of dependency-only rules can walk deps but has
// nothing to run for target itself.
func hasRecipe(rlist []SubRule) bool {
	return firstRecipe(rlist) != nil
}

func firstRecipe(rlist []SubRule) *Rule {
	for _, sr := range rlist {
		if sr.Rule.Recipe != nil {
			return sr.Rule
		}
	}
	return nil
}

func fileReadable(name string) bool {
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
