package watcher

import (
	"slices"
	"strings"
)

// ResolveProperties returns the first value found for every target property
// looking through selectors in priority order (highest first). Property
// names and values are compared and returned with all whitespace removed.
// Second return value lists targets which were not resolved (duplicates
// dropped). Nil rules resolve nothing.
func ResolveProperties(rules SelectorRules, selectors, targets []string) (map[string]string, []string) {
	result := make(map[string]string)

	remaining := make([]string, 0, len(targets))
	for _, t := range targets {
		if t = stripSpaces(t); !slices.Contains(remaining, t) {
			remaining = append(remaining, t)
		}
	}
	if rules == nil {
		return result, remaining
	}

	for _, sel := range selectors {
		if len(remaining) == 0 {
			break
		}
		decls, ok := rules[sel]
		if !ok {
			continue
		}
		for _, d := range decls {
			name := stripSpaces(d.Property)
			i := slices.Index(remaining, name)
			if i < 0 {
				continue
			}
			result[name] = stripSpaces(d.Value)
			remaining = slices.Delete(remaining, i, i+1)
			if len(remaining) == 0 {
				break
			}
		}
	}
	return result, remaining
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
