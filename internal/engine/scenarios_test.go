package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeShell is a ShellFunc test double recording every command it was
// asked to run, in the order the pool actually dispatched them, and
// resolving canned exit codes by exact command-line match (default 0).
type fakeShell struct {
	mu       sync.Mutex
	invoked  []string
	results  map[string]int
}

func newFakeShell(results map[string]int) *fakeShell {
	return &fakeShell{results: results}
}

func (f *fakeShell) run(_ context.Context, cmdline string) int {
	f.mu.Lock()
	f.invoked = append(f.invoked, cmdline)
	f.mu.Unlock()
	if f.results != nil {
		if code, ok := f.results[cmdline]; ok {
			return code
		}
	}
	return 0
}

func (f *fakeShell) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.invoked))
	copy(out, f.invoked)
	return out
}

// compileRecipe builds a Recipe that runs "<cmd> -o $target $source" through
// the engine's shell mechanism, mirroring the worked scenarios' notation.
func compileRecipe(cmd string) Recipe {
	return RecipeFunc(func(rc *RecipeContext) (int, error) {
		return rc.Shell(cmd + " -o " + rc.Target + " " + rc.Source), nil
	})
}

func TestScenario1SimpleUpToDateMissingRule(t *testing.T) {
	chdirTemp(t)
	touch(t, "foo.c", time.Unix(100, 0))
	touch(t, "foo.o", time.Unix(200, 0))

	shell := newFakeShell(nil)
	e := New(1, shell.run)
	defer e.Close()

	if err := e.AddRule([]string{"%.o"}, []string{"%.c"}, compileRecipe("cc -c"), false); err != nil {
		t.Fatal(err)
	}
	// test depends on foo.o but carries no recipe of its own: it can walk
	// its dep but has nothing to run for itself, and no "test" file exists.
	if err := e.AddRule([]string{"test"}, []string{"foo.o"}, nil, false); err != nil {
		t.Fatal(err)
	}

	code, err := e.ExecMain(testContext(), "test")
	if err == nil {
		t.Fatal("expected a MissingRule-style error for target 'test'")
	}
	if !strings.Contains(err.Error(), "no rule to run target 'test'") {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = code

	if cmds := shell.commands(); len(cmds) != 0 {
		t.Fatalf("foo.o is already up to date against foo.c, expected no shell tasks, got %v", cmds)
	}
}

func TestScenario2RebuildCascade(t *testing.T) {
	chdirTemp(t)
	touch(t, "foo.c", time.Unix(300, 0))
	touch(t, "foo.o", time.Unix(200, 0))
	touch(t, "test", time.Unix(100, 0))

	shell := newFakeShell(nil)
	e := New(1, shell.run)
	defer e.Close()

	if err := e.AddRule([]string{"%.o"}, []string{"%.c"}, compileRecipe("cc -c"), false); err != nil {
		t.Fatal(err)
	}
	if err := e.AddRule([]string{"test"}, []string{"foo.o"}, compileRecipe("cc"), false); err != nil {
		t.Fatal(err)
	}

	code, err := e.ExecMain(testContext(), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	cmds := shell.commands()
	if len(cmds) != 2 {
		t.Fatalf("expected exactly two shell invocations, got %v", cmds)
	}
	if cmds[0] != "cc -c -o foo.o foo.c" {
		t.Fatalf("first command = %q, want the foo.o compile", cmds[0])
	}
	if cmds[1] != "cc -o test foo.o" {
		t.Fatalf("second command = %q, want the test link", cmds[1])
	}
}

func TestScenario3ShortestPatternTieBreak(t *testing.T) {
	chdirTemp(t)
	touch(t, "foo_x.c", time.Now())

	shell := newFakeShell(nil)
	e := New(1, shell.run)
	defer e.Close()

	if err := e.AddRule([]string{"%.o"}, []string{"%.c"}, compileRecipe("A"), false); err != nil {
		t.Fatal(err)
	}
	if err := e.AddRule([]string{"foo%.o"}, []string{"foo%.c"}, compileRecipe("B"), false); err != nil {
		t.Fatal(err)
	}

	code, err := e.ExecMain(testContext(), "foo_x.o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	cmds := shell.commands()
	if len(cmds) != 1 || !strings.HasPrefix(cmds[0], "B ") {
		t.Fatalf("expected recipe B to run exactly once, got %v", cmds)
	}
}

func TestScenario4Action(t *testing.T) {
	chdirTemp(t)

	shell := newFakeShell(nil)
	e := New(1, shell.run)
	defer e.Close()

	recipe := RecipeFunc(func(rc *RecipeContext) (int, error) {
		return rc.Shell("rm -f foo.o"), nil
	})
	if err := e.AddRule([]string{"clean"}, nil, recipe, true); err != nil {
		t.Fatal(err)
	}

	code, err := e.ExecMain(testContext(), "clean")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	cmds := shell.commands()
	if len(cmds) != 1 || cmds[0] != "rm -f foo.o" {
		t.Fatalf("expected exactly one shell task, got %v", cmds)
	}
}

func TestScenario4ActionRunsEvenWhenFilePresent(t *testing.T) {
	chdirTemp(t)
	touch(t, "clean", time.Now())

	shell := newFakeShell(nil)
	e := New(1, shell.run)
	defer e.Close()

	recipe := RecipeFunc(func(rc *RecipeContext) (int, error) {
		return rc.Shell("rm -f foo.o"), nil
	})
	if err := e.AddRule([]string{"clean"}, nil, recipe, true); err != nil {
		t.Fatal(err)
	}

	code, err := e.ExecMain(testContext(), "clean")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if len(shell.commands()) != 1 {
		t.Fatalf("action must run regardless of the target file's presence")
	}
}

func TestScenario5ParallelWithFailureLatch(t *testing.T) {
	chdirTemp(t)
	touch(t, "a.c", time.Now())
	touch(t, "b.c", time.Now())
	touch(t, "c.c", time.Now())

	results := map[string]int{
		"false -o b.o b.c": 1,
	}
	shell := newFakeShell(results)
	e := New(3, shell.run)
	defer e.Close()

	compileFor := func(letter string) Recipe {
		return RecipeFunc(func(rc *RecipeContext) (int, error) {
			cmd := "true"
			if letter == "b" {
				cmd = "false"
			}
			return rc.Shell(cmd + " -o " + rc.Target + " " + rc.Source), nil
		})
	}

	if err := e.AddRule([]string{"a.o"}, []string{"a.c"}, compileFor("a"), false); err != nil {
		t.Fatal(err)
	}
	if err := e.AddRule([]string{"b.o"}, []string{"b.c"}, compileFor("b"), false); err != nil {
		t.Fatal(err)
	}
	if err := e.AddRule([]string{"c.o"}, []string{"c.c"}, compileFor("c"), false); err != nil {
		t.Fatal(err)
	}
	if err := e.AddRule([]string{"all"}, []string{"a.o", "b.o", "c.o"}, nil, false); err != nil {
		t.Fatal(err)
	}

	code, err := e.ExecMain(testContext(), "all")
	if err != nil {
		t.Fatalf("a failed shell task is reported via the exit code, not an error: %v", err)
	}
	if code != 1 {
		t.Fatalf("expected the latched exit code 1, got %d", code)
	}

	cmds := shell.commands()
	if len(cmds) != 3 {
		t.Fatalf("expected all three compiles to run despite the failure, got %v", cmds)
	}
}

func TestIdempotentRerunEnqueuesNoShellTasks(t *testing.T) {
	chdirTemp(t)
	touch(t, "foo.c", time.Unix(100, 0))
	touch(t, "foo.o", time.Unix(200, 0))

	shell := newFakeShell(nil)
	e := New(1, shell.run)
	defer e.Close()

	if err := e.AddRule([]string{"%.o"}, []string{"%.c"}, compileRecipe("cc -c"), false); err != nil {
		t.Fatal(err)
	}

	code, err := e.ExecMain(testContext(), "foo.o")
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if len(shell.commands()) != 0 {
		t.Fatalf("an up-to-date target must not enqueue any shell task, got %v", shell.commands())
	}
}
