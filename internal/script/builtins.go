package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/obuild/obuild/internal/engine"
)

// toStringList realizes the script host's list-tokenisation rule (see
// DESIGN.md, "tokenisation boundary"): a bare string argument is split on
// whitespace exactly once, the same convention a Makefile or the original
// cubescript interpreter uses for a space-separated token list; a Starlark
// list or tuple is taken element-by-element with no further splitting,
// since the caller already did the work of separating it.
func toStringList(v starlark.Value) ([]string, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		s := strings.TrimSpace(string(x))
		if s == "" {
			return nil, nil
		}
		return strings.Fields(s), nil
	case *starlark.List:
		return stringsFromIterable(x)
	case starlark.Tuple:
		return stringsFromIterable(x)
	default:
		return nil, eris.Errorf("expected a string or a list of strings, got %s", v.Type())
	}
}

func stringsFromIterable(it starlark.Iterable) ([]string, error) {
	iter := it.Iterate()
	defer iter.Done()
	var out []string
	var elem starlark.Value
	for iter.Next(&elem) {
		s, ok := starlark.AsString(elem)
		if !ok {
			return nil, eris.Errorf("list elements must be strings, got %s", elem.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

func biRule(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var targetsV, depsV starlark.Value
	var bodyV starlark.Callable
	if err := starlark.UnpackArgs("rule", args, kwargs,
		"targets", &targetsV, "deps?", &depsV, "body?", &bodyV); err != nil {
		return nil, err
	}

	targets, err := toStringList(targetsV)
	if err != nil {
		return nil, err
	}
	deps, err := toStringList(depsV)
	if err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	var recipe engine.Recipe
	if bodyV != nil {
		recipe = &starlarkRecipe{thread: thread, fn: bodyV}
	}

	if err := hctx.engine.AddRule(targets, deps, recipe, false); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func biAction(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var bodyV starlark.Callable
	if err := starlark.UnpackArgs("action", args, kwargs, "name", &name, "body?", &bodyV); err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	var recipe engine.Recipe
	if bodyV != nil {
		recipe = &starlarkRecipe{thread: thread, fn: bodyV}
	}

	if err := hctx.engine.AddRule([]string{name}, nil, recipe, true); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func biDepend(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var targetV, depsV starlark.Value
	if err := starlark.UnpackArgs("depend", args, kwargs, "target", &targetV, "deps", &depsV); err != nil {
		return nil, err
	}
	targets, err := toStringList(targetV)
	if err != nil {
		return nil, err
	}
	deps, err := toStringList(depsV)
	if err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	if err := hctx.engine.AddRule(targets, deps, nil, false); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func biDupRule(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var newTarget, existing string
	var depsV starlark.Value
	if err := starlark.UnpackArgs("duprule", args, kwargs,
		"new", &newTarget, "existing", &existing, "deps?", &depsV); err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	if depsV == nil || depsV == starlark.None {
		if err := hctx.engine.DupRule(newTarget, existing, nil, true); err != nil {
			return nil, err
		}
		return starlark.None, nil
	}

	deps, err := toStringList(depsV)
	if err != nil {
		return nil, err
	}
	if err := hctx.engine.DupRule(newTarget, existing, deps, false); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func biShell(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmdline string
	if err := starlark.UnpackArgs("shell", args, kwargs, "cmdline", &cmdline); err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	if hctx.recipe == nil {
		return nil, eris.New("shell() called outside of a recipe")
	}
	return starlark.MakeInt(hctx.recipe.Shell(cmdline)), nil
}

func biInvoke(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target string
	if err := starlark.UnpackArgs("invoke", args, kwargs, "target", &target); err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	if hctx.recipe == nil {
		return nil, eris.New("invoke() called outside of a recipe")
	}
	code, err := hctx.recipe.Invoke(target)
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(code), nil
}

func biGlob(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var patternsV starlark.Value
	if err := starlark.UnpackArgs("glob", args, kwargs, "patterns", &patternsV); err != nil {
		return nil, err
	}
	tokens, err := toStringList(patternsV)
	if err != nil {
		return nil, err
	}
	return starlark.String(engine.Glob(tokens, os.ReadDir)), nil
}

func biExtReplace(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var tokensV starlark.Value
	var oldExt, newExt string
	if err := starlark.UnpackArgs("extreplace", args, kwargs,
		"tokens", &tokensV, "old", &oldExt, "new", &newExt); err != nil {
		return nil, err
	}
	tokens, err := toStringList(tokensV)
	if err != nil {
		return nil, err
	}
	return starlark.String(engine.ExtReplace(tokens, oldExt, newExt)), nil
}

func biGetenv(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, def string
	if err := starlark.UnpackArgs("getenv", args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	if hctx.ignoreEnv {
		return starlark.String(def), nil
	}
	if v, ok := hctx.envOverrides[name]; ok {
		return starlark.String(v), nil
	}
	if v, ok := os.LookupEnv(name); ok {
		return starlark.String(v), nil
	}
	return starlark.String(def), nil
}

func biSetenv(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, value string
	if err := starlark.UnpackArgs("setenv", args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	getHostCtx(thread).envOverrides[name] = value
	return starlark.None, nil
}

func biPrependPath(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dir string
	if err := starlark.UnpackArgs("prepend_path", args, kwargs, "dir", &dir); err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	current, ok := hctx.envOverrides["PATH"]
	if !ok {
		current = os.Getenv("PATH")
	}
	hctx.envOverrides["PATH"] = dir + string(os.PathListSeparator) + current
	return starlark.None, nil
}

func biEcho(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var arg starlark.Value
	if err := starlark.UnpackArgs("echo", args, kwargs, "arg", &arg); err != nil {
		return nil, err
	}
	if s, ok := starlark.AsString(arg); ok {
		fmt.Println(s)
	} else {
		fmt.Println(arg.String())
	}
	return starlark.None, nil
}

func biReadYaml(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var file, key string
	var defaultV starlark.Value = starlark.None
	if err := starlark.UnpackArgs("read_yaml", args, kwargs,
		"file", &file, "key", &key, "default?", &defaultV); err != nil {
		return nil, err
	}

	hctx := getHostCtx(thread)
	doc, ok := hctx.yamlCache[file]
	if !ok {
		content, err := os.ReadFile(file)
		if err != nil {
			return defaultV, nil
		}
		var parsed interface{}
		if err := yaml.Unmarshal(content, &parsed); err != nil {
			return nil, eris.Wrapf(err, "failed to parse %s", file)
		}
		hctx.yamlCache[file] = parsed
		doc = parsed
	}

	val, found := lookupDotted(doc, key)
	if !found {
		return defaultV, nil
	}
	return interfaceToStarlark(val)
}

func lookupDotted(doc interface{}, key string) (interface{}, bool) {
	cur := doc
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func interfaceToStarlark(v interface{}) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case string:
		return starlark.String(x), nil
	case float64:
		return starlark.Float(x), nil
	case []interface{}:
		items := make([]starlark.Value, len(x))
		for i, e := range x {
			sv, err := interfaceToStarlark(e)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]interface{}:
		d := starlark.NewDict(len(x))
		for k, e := range x {
			sv, err := interfaceToStarlark(e)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, eris.Errorf("read_yaml: unsupported value type %T", v)
	}
}

func biResolvePath(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	hctx := getHostCtx(thread)

	var parts []string
	for _, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, eris.Errorf("resolve_path: expected string parts, got %s", a.Type())
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return nil, eris.New("resolve_path: at least one path component is required")
	}

	if strings.HasPrefix(parts[0], "//") {
		rest := append([]string{strings.TrimPrefix(parts[0], "//")}, parts[1:]...)
		return starlark.String(filepath.Join(append([]string{hctx.projectRoot}, rest...)...)), nil
	}

	base := filepath.Dir(hctx.filename)
	return starlark.String(filepath.Join(append([]string{base}, parts...)...)), nil
}

func biExecute(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command, format string
	var showError bool
	if err := starlark.UnpackArgs("execute", args, kwargs,
		"command", &command, "format?", &format, "show_error?", &showError); err != nil {
		return nil, err
	}
	if format == "" {
		format = "text"
	}

	hctx := getHostCtx(thread)

	file, err := syntax.NewParser().Parse(strings.NewReader(command), "<execute>")
	if err != nil {
		return nil, eris.Wrap(err, "execute: failed to parse command")
	}

	var out bytes.Buffer
	runner, err := interp.New(interp.StdIO(nil, &out, &out))
	if err != nil {
		return nil, eris.Wrap(err, "execute: failed to build shell runner")
	}

	runCtx := hctx.ctx
	if runCtx == nil {
		runCtx = context.Background()
	}
	runErr := runner.Run(runCtx, file)
	if runErr != nil && showError {
		return nil, eris.Wrapf(runErr, "execute: command failed: %s", command)
	}

	text := strings.TrimRight(out.String(), "\n")
	if format == "json" {
		var parsed interface{}
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return nil, eris.Wrapf(err, "execute: failed to parse JSON output of: %s", command)
		}
		return interfaceToStarlark(parsed)
	}
	return starlark.String(text), nil
}
