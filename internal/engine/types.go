package engine

import (
	"context"
	"strings"
)

// Recipe is the opaque compiled-script handle a rule runs to produce its
// target. The engine never inspects a Recipe's internals; it only invokes
// Run with the bindings the executor computed for this invocation.
type Recipe interface {
	Run(rc *RecipeContext) (int, error)
}

// RecipeFunc adapts a plain function to Recipe, mainly for tests.
type RecipeFunc func(rc *RecipeContext) (int, error)

func (f RecipeFunc) Run(rc *RecipeContext) (int, error) { return f(rc) }

// Rule binds one or more target names to an ordered list of dependencies and
// an optional recipe. Rules are immutable once registered.
type Rule struct {
	Target string
	Deps   []string
	Recipe Recipe
	Action bool
}

// SubRule pairs a rule reference with the substitution string '%' expanded
// to when the rule matched. HasCapture is false for an exact match.
type SubRule struct {
	Rule       *Rule
	Capture    string
	HasCapture bool
}

// expandDep resolves one declared dependency string against the
// substitution captured when sr's rule matched. A dep containing '%' when
// the owning rule matched exactly (no capture) is emitted with its literal
// '%' intact; see DESIGN.md for the resolved Open Question.
func (sr SubRule) expandDep(dep string) string {
	if !strings.Contains(dep, "%") {
		return dep
	}
	if !sr.HasCapture {
		return dep
	}
	return Substitute(dep, sr.Capture)
}

// RecipeContext carries the bindings a recipe invocation needs: the
// interpreter aliases (target/source/sources) and the means to enqueue
// shell work or recursively drive another target, both scoped to the
// barrier the executor selected for this invocation.
type RecipeContext struct {
	Ctx     context.Context
	Target  string
	Source  string
	Sources string

	engine  *Engine
	barrier *Barrier
}

// Shell enqueues cmdline onto the worker pool under this invocation's
// barrier and returns 0 immediately; the command's actual exit status is
// latched into the barrier asynchronously (first-failure-wins).
func (rc *RecipeContext) Shell(cmdline string) int {
	rc.barrier.Incr()
	rc.engine.pool.Push(func() {
		code := rc.engine.runShell(rc.Ctx, cmdline)
		rc.barrier.latchFailure(code)
		rc.barrier.Decr()
	})
	return 0
}

// Invoke recursively drives target from within a recipe, using this
// invocation's barrier as the parent for any shell work target's own
// recipe enqueues.
func (rc *RecipeContext) Invoke(target string) (int, error) {
	return rc.engine.ExecRule(rc.Ctx, target, rc.Target, rc.barrier)
}
