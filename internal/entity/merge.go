package entity

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Merge folds same-kind candidates into one phrase. Exact duplicates are
// dropped, then any candidate contained in a longer surviving one, so the
// more specific span wins. Survivors are ordered by their first occurrence in
// original and joined with single spaces. An empty result means "not found".
func Merge(cands []string, original string) string {
	uniq := make([]string, 0, len(cands))
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		uniq = append(uniq, c)
	}
	if len(uniq) == 0 {
		return ""
	}

	sort.SliceStable(uniq, func(i, j int) bool {
		return utf8.RuneCountInString(uniq[i]) > utf8.RuneCountInString(uniq[j])
	})

	kept := make([]string, 0, len(uniq))
	for _, c := range uniq {
		if !containedInOther(c, uniq) {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return strings.Index(original, kept[i]) < strings.Index(original, kept[j])
	})
	return strings.Join(kept, " ")
}

func containedInOther(c string, all []string) bool {
	for _, other := range all {
		if other != c && strings.Contains(other, c) {
			return true
		}
	}
	return false
}
