package engine

import "strings"

// ExtReplace rewrites the extension of every token in tokens from oldExt to
// newExt (a leading '.' is stripped from either argument if present) and
// joins the result with single spaces. Tokens whose extension doesn't
// match oldExt are emitted unchanged.
func ExtReplace(tokens []string, oldExt, newExt string) string {
	oldExt = strings.TrimPrefix(oldExt, ".")
	newExt = strings.TrimPrefix(newExt, ".")

	out := make([]string, len(tokens))
	for i, tok := range tokens {
		dot := strings.LastIndexByte(tok, '.')
		if dot < 0 || tok[dot+1:] != oldExt {
			out[i] = tok
			continue
		}
		out[i] = tok[:dot+1] + newExt
	}
	return strings.Join(out, " ")
}
