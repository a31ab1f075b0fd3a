package script

import (
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/obuild/obuild/internal/engine"
)

// starlarkRecipe adapts a compiled Starlark function to engine.Recipe. The
// interpreter aliases (target/source/sources) spec.md's data model calls
// for are realized as ordinary keyword arguments to fn rather than as
// dynamically-scoped globals: Starlark functions are lexically scoped, so
// binding them as call arguments is the idiomatic equivalent of the
// original's push-on-entry/pop-on-exit alias stack — the binding's scope is
// exactly the dynamic extent of this call, with nothing left over after it
// returns.
type starlarkRecipe struct {
	thread *starlark.Thread
	fn     starlark.Callable
}

func (r *starlarkRecipe) Run(rc *engine.RecipeContext) (int, error) {
	hctx := getHostCtx(r.thread)

	prevRecipe := hctx.recipe
	hctx.recipe = rc
	defer func() { hctx.recipe = prevRecipe }()

	kwargs := []starlark.Tuple{
		{starlark.String("target"), starlark.String(rc.Target)},
		{starlark.String("source"), starlark.String(rc.Source)},
		{starlark.String("sources"), starlark.String(rc.Sources)},
	}

	result, err := starlark.Call(r.thread, r.fn, nil, kwargs)
	if err != nil {
		// The callable rejected the alias bindings we offered it (arity or
		// keyword mismatch) or failed during its own body; either way this
		// is the recipe's own exit path, not a dependency failure.
		return 1, eris.Wrapf(describeEvalError(err), "recipe for target '%s' failed", rc.Target)
	}

	if code, ok := asExitCode(result); ok {
		return code, nil
	}
	return 0, nil
}

func asExitCode(v starlark.Value) (int, bool) {
	if v == nil || v == starlark.None {
		return 0, false
	}
	i, err := starlark.AsInt32(v)
	if err != nil {
		return 0, false
	}
	return i, true
}
