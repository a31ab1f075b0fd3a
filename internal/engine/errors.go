package engine

import "github.com/rotisserie/eris"

// ErrMultiplePatterns is returned by AddRule/DupRule when a target contains
// more than one '%' wildcard; the original source's behavior for this case
// is unspecified, so registration rejects it outright.
var ErrMultiplePatterns = eris.New("target may contain at most one '%' wildcard")

// ErrActionPattern is returned when an action rule's name contains '%'; an
// action must match exactly (invariant I2).
var ErrActionPattern = eris.New("action rule target may not contain '%'")

// ErrRecursiveTask names a recursive target reference. No engine path
// returns it: ExecRule does not detect a dependency chain or an invoke()
// that re-enters a target still being resolved.
var ErrRecursiveTask = eris.New("recursive target reference")

func errRedefinition(target string) error {
	return eris.Errorf("redefinition of rule '%s'", target)
}

func errNoRule(target, from string) error {
	if from == "" {
		return eris.Errorf("no rule to run target '%s'", target)
	}
	return eris.Errorf("no rule to run target '%s' (needed by '%s')", target, from)
}
