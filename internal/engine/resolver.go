package engine

// FindRules maps target to the ordered list of SubRules that apply to it:
// every exact or pattern match, with at most one recipe-bearing entry
// surviving (exact beats pattern, shortest capture wins among patterns).
// Results are memoised in e.resolveCache; the cache is a pure memoisation
// over an append-only, immutable rule list, so it never needs invalidation.
func (e *Engine) FindRules(target string) ([]SubRule, error) {
	if cached, ok := e.resolveCache[target]; ok {
		return cached.subrules, cached.err
	}

	subrules, err := e.findRules(target)
	e.resolveCache[target] = resolveEntry{subrules: subrules, err: err}
	return subrules, err
}

type resolveEntry struct {
	subrules []SubRule
	err      error
}

func (e *Engine) findRules(target string) ([]SubRule, error) {
	result := make([]SubRule, 0, 4)
	championIdx := -1
	championIsExact := false
	championCaptureLen := -1

	for _, r := range e.rules {
		var sub SubRule
		var matched bool

		if r.Target == target {
			sub = SubRule{Rule: r}
			matched = true
		} else if capture, ok := CompareSubst(target, r.Target); ok {
			sub = SubRule{Rule: r, Capture: capture, HasCapture: true}
			matched = true
		}
		if !matched {
			continue
		}

		if r.Recipe == nil {
			if championIsExact {
				// An exact recipe already won; non-recipe rules found
				// afterwards don't contribute further dependencies.
				continue
			}
			result = append(result, sub)
			continue
		}

		isExact := !sub.HasCapture
		captureLen := len(sub.Capture)

		if championIdx == -1 {
			championIdx = len(result)
			championIsExact = isExact
			championCaptureLen = captureLen
			result = append(result, sub)
			continue
		}

		switch {
		case championIsExact && isExact:
			return nil, errRedefinition(target)
		case championIsExact:
			// exact already wins; this pattern candidate is dropped
		case isExact:
			// exact beats the existing pattern champion
			result = removeAt(result, championIdx)
			championIdx = len(result)
			championIsExact = true
			championCaptureLen = captureLen
			result = append(result, sub)
		case captureLen == championCaptureLen:
			return nil, errRedefinition(target)
		case captureLen < championCaptureLen:
			result = removeAt(result, championIdx)
			championIdx = len(result)
			championCaptureLen = captureLen
			result = append(result, sub)
		default:
			// existing pattern champion has the shorter capture; drop this one
		}
	}

	return result, nil
}

func removeAt(s []SubRule, i int) []SubRule {
	return append(s[:i], s[i+1:]...)
}
