package engine

import "strings"

// CompareSubst reports whether pattern (which may contain one '%' wildcard)
// matches expanded, returning the substring that stood in place of '%'.
// A pattern without '%' never matches here (exact comparison is handled by
// the resolver). Per spec, the captured substring must be non-empty: the
// prefix/suffix comparisons require expanded to be strictly longer than the
// corresponding literal affix.
func CompareSubst(expanded, pattern string) (capture string, ok bool) {
	idx := strings.IndexByte(pattern, '%')
	if idx < 0 {
		return "", false
	}

	pre := pattern[:idx]
	post := pattern[idx+1:]

	if len(expanded) <= len(pre) || !strings.HasPrefix(expanded, pre) {
		return "", false
	}
	rest := expanded[len(pre):]

	if post == "" {
		return rest, true
	}

	if len(rest) <= len(post) || !strings.HasSuffix(rest, post) {
		return "", false
	}
	return rest[:len(rest)-len(post)], true
}

// Substitute splices capture into pattern's single '%' wildcard. If pattern
// has no '%', it is returned unchanged.
func Substitute(pattern, capture string) string {
	idx := strings.IndexByte(pattern, '%')
	if idx < 0 {
		return pattern
	}
	return pattern[:idx] + capture + pattern[idx+1:]
}

func countWildcards(s string) int {
	return strings.Count(s, "%")
}
