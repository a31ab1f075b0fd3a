package engine

import (
	"os"
	"strings"
)

// DirEntryLister enumerates directory entries; satisfied by os.ReadDir.
// Exposed so tests can glob over a synthetic tree without touching disk.
type DirEntryLister func(dir string) ([]os.DirEntry, error)

// Glob expands each whitespace-tokenised entry in tokens independently and
// returns the whitespace-joined concatenation of all matches, in directory
// enumeration order per token, preserving duplicates across tokens.
func Glob(tokens []string, list DirEntryLister) string {
	var out []string
	for _, tok := range tokens {
		out = append(out, expandGlob(tok, list)...)
	}
	return strings.Join(out, " ")
}

func expandGlob(token string, list DirEntryLister) []string {
	star := strings.IndexByte(token, '*')
	if star < 0 {
		return []string{token}
	}

	preStar := token[:star]
	dir := "."
	fnPre := preStar
	if slash := strings.LastIndexByte(preStar, '/'); slash >= 0 {
		dir = token[:slash]
		fnPre = preStar[slash+1:]
	}

	rest := token[star+1:]
	fnPost := rest
	var deeper string
	hasDeeper := false
	if nslash := strings.IndexByte(rest, '/'); nslash >= 0 {
		fnPost = rest[:nslash]
		deeper = rest[nslash:]
		hasDeeper = true
	}

	parts := decomposeParts(fnPre + "*" + fnPost)

	matches := expandDir(dir, parts, deeper, hasDeeper, list)
	if len(matches) == 0 {
		return []string{token}
	}
	return matches
}

// decomposeParts splits a single filename segment (containing at least one
// '*') into an ordered list of literal/"*" tokens, coalescing adjacent '*'.
func decomposeParts(segment string) []string {
	var parts []string
	for len(segment) > 0 {
		star := strings.IndexByte(segment, '*')
		if star < 0 {
			parts = append(parts, segment)
			break
		}
		if star > 0 {
			parts = append(parts, segment[:star])
		}
		if len(parts) == 0 || parts[len(parts)-1] != "*" {
			parts = append(parts, "*")
		}
		segment = segment[star+1:]
	}
	return parts
}

func expandDir(dir string, parts []string, deeper string, hasDeeper bool, list DirEntryLister) []string {
	entries, err := list(dir)
	if err != nil {
		return nil
	}

	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		if !pathMatches(name, parts) {
			continue
		}

		var assembled string
		if dir == "." {
			assembled = name
		} else {
			assembled = dir + "/" + name
		}

		if !hasDeeper {
			if !isReadableFile(assembled) {
				continue
			}
			out = append(out, assembled)
			continue
		}

		full := assembled + deeper
		if strings.Contains(deeper[1:], "*") {
			out = append(out, expandGlob(full, list)...)
			continue
		}
		if !isReadableFile(full) {
			continue
		}
		out = append(out, full)
	}
	return out
}

// pathMatches walks parts left-to-right against name: a literal part must
// prefix-match at the cursor; a '*' consumes the shortest suffix that lets
// the next literal match, or the rest of the string if trailing.
func pathMatches(name string, parts []string) bool {
	for i := 0; i < len(parts); i++ {
		elem := parts[i]
		if elem == "*" {
			if i == len(parts)-1 {
				return true
			}
			next := parts[i+1]
			for len(name) > len(next) && name[:len(next)] != next {
				name = name[1:]
			}
			continue
		}
		if len(name) < len(elem) || name[:len(elem)] != elem {
			return false
		}
		name = name[len(elem):]
	}
	return name == ""
}

func isReadableFile(p string) bool {
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
