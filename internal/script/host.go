// Package script is the scripting-language host the build engine is driven
// through. The interpreter itself (go.starlark.net/starlark) is an external
// collaborator per the engine's design: this package only compiles
// definition files, registers the builtin commands the core spec names
// (rule, action, depend, duprule, shell, invoke, glob, extreplace, getenv,
// echo, plus a handful of carried-over conveniences) and adapts compiled
// recipe bodies to engine.Recipe. internal/engine never imports this
// package or go.starlark.net.
package script

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/obuild/obuild/internal/engine"
)

// hostCtx is the per-run state threaded through a starlark.Thread via
// thread.Local, mirroring the teacher's parserCtx.
type hostCtx struct {
	ctx          context.Context
	engine       *engine.Engine
	filename     string
	projectRoot  string
	ignoreEnv    bool
	envOverrides map[string]string
	yamlCache    map[string]interface{}
	recipe       *engine.RecipeContext // set only during a recipe's dynamic extent
}

func getHostCtx(thread *starlark.Thread) *hostCtx {
	return thread.Local("hostCtx").(*hostCtx)
}

// Options configures a definition-file run.
type Options struct {
	// Filename is the definition file to evaluate (may be empty if only
	// Execute is given).
	Filename string
	// Execute is an inline snippet evaluated before Filename; both must
	// succeed if both are given.
	Execute string
	// ProjectRoot anchors "//"-prefixed paths in resolve_path.
	ProjectRoot string
	// Jobs is the effective -j value, exposed to scripts as numjobs.
	Jobs int
	// IgnoreEnv makes getenv always return its default ("" if none is given).
	IgnoreEnv bool
}

// Run evaluates Options.Execute (if set) and then Options.Filename (if set)
// against eng, registering every rule/action/depend/duprule call as a side
// effect. Evaluation errors are wrapped as "failed creating rules"; an
// empty rule set afterwards is reported as "no targets".
func Run(ctx context.Context, eng *engine.Engine, opts Options) error {
	hctx := &hostCtx{
		ctx:          ctx,
		engine:       eng,
		filename:     opts.Filename,
		projectRoot:  opts.ProjectRoot,
		ignoreEnv:    opts.IgnoreEnv,
		envOverrides: make(map[string]string),
		yamlCache:    make(map[string]interface{}),
	}

	thread := &starlark.Thread{
		Name: "obuild",
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(os.Stdout, msg)
		},
	}
	thread.SetLocal("hostCtx", hctx)

	predeclared := starlark.StringDict{
		"OS":           starlark.String(runtime.GOOS),
		"ARCH":         starlark.String(runtime.GOARCH),
		"numcpus":      starlark.MakeInt(runtime.NumCPU()),
		"numjobs":      starlark.MakeInt(opts.Jobs),
		"rule":         starlark.NewBuiltin("rule", biRule),
		"action":       starlark.NewBuiltin("action", biAction),
		"depend":       starlark.NewBuiltin("depend", biDepend),
		"duprule":      starlark.NewBuiltin("duprule", biDupRule),
		"shell":        starlark.NewBuiltin("shell", biShell),
		"invoke":       starlark.NewBuiltin("invoke", biInvoke),
		"glob":         starlark.NewBuiltin("glob", biGlob),
		"extreplace":   starlark.NewBuiltin("extreplace", biExtReplace),
		"getenv":       starlark.NewBuiltin("getenv", biGetenv),
		"setenv":       starlark.NewBuiltin("setenv", biSetenv),
		"prepend_path": starlark.NewBuiltin("prepend_path", biPrependPath),
		"echo":         starlark.NewBuiltin("echo", biEcho),
		"read_yaml":    starlark.NewBuiltin("read_yaml", biReadYaml),
		"resolve_path": starlark.NewBuiltin("resolve_path", biResolvePath),
		"execute":      starlark.NewBuiltin("execute", biExecute),
	}

	if opts.Execute != "" {
		if _, err := starlark.ExecFile(thread, "<execute>", opts.Execute, predeclared); err != nil {
			return eris.Wrap(describeEvalError(err), "failed creating rules")
		}
	}

	if opts.Filename != "" {
		content, err := os.ReadFile(opts.Filename)
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", opts.Filename)
		}
		if _, err := starlark.ExecFile(thread, opts.Filename, content, predeclared); err != nil {
			return eris.Wrap(describeEvalError(err), "failed creating rules")
		}
	}

	if eng.RuleCount() == 0 {
		return eris.New("no targets")
	}

	return nil
}

func describeEvalError(err error) error {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return eris.New(evalErr.Backtrace())
	}
	return err
}

