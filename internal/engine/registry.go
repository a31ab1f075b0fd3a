package engine

// AddRule appends one Rule per target in targets. All resulting rules share
// the same deps and recipe. An empty recipe means the rule contributes only
// dependencies. Targets and deps are taken verbatim; tokenisation is the
// script host's job (see DESIGN.md, "tokenisation boundary").
func (e *Engine) AddRule(targets, deps []string, recipe Recipe, action bool) error {
	for _, target := range targets {
		if countWildcards(target) > 1 {
			return ErrMultiplePatterns
		}
		if action && countWildcards(target) > 0 {
			return ErrActionPattern
		}

		depsCopy := make([]string, len(deps))
		copy(depsCopy, deps)

		e.rules = append(e.rules, &Rule{
			Target: target,
			Deps:   depsCopy,
			Recipe: recipe,
			Action: action,
		})
	}

	return nil
}

// DupRule clones the first rule whose target equals prototypeTarget into a
// new rule named newTarget. If no such rule exists, DupRule is a silent
// no-op. When inheritDeps is true the clone keeps the prototype's deps;
// otherwise it uses deps.
func (e *Engine) DupRule(newTarget, prototypeTarget string, deps []string, inheritDeps bool) error {
	var proto *Rule
	for _, r := range e.rules {
		if r.Target == prototypeTarget {
			proto = r
			break
		}
	}
	if proto == nil {
		return nil
	}

	if countWildcards(newTarget) > 1 {
		return ErrMultiplePatterns
	}
	if proto.Action && countWildcards(newTarget) > 0 {
		return ErrActionPattern
	}

	var newDeps []string
	if inheritDeps {
		newDeps = make([]string, len(proto.Deps))
		copy(newDeps, proto.Deps)
	} else {
		newDeps = make([]string, len(deps))
		copy(newDeps, deps)
	}

	e.rules = append(e.rules, &Rule{
		Target: newTarget,
		Deps:   newDeps,
		Recipe: proto.Recipe,
		Action: proto.Action,
	})
	return nil
}
