package search

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const keywordDelimiter = ","

// ExpandKeyword splits a keyword into the full phrase followed by each
// delimited term. The full phrase always comes first; repeated and empty
// terms are dropped.
func ExpandKeyword(keyword string) []string {
	phrase := normalizeTerm(keyword)
	if phrase == "" {
		return nil
	}

	queries := []string{phrase}
	seen := map[string]struct{}{phrase: {}}
	for _, raw := range strings.Split(phrase, keywordDelimiter) {
		term := normalizeTerm(raw)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		queries = append(queries, term)
	}
	return queries
}

func normalizeTerm(raw string) string {
	return strings.TrimSpace(norm.NFC.String(raw))
}
