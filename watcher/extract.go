package watcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBlockNotFound is returned when rule text has no declaration block
// following selector text.
var ErrBlockNotFound = errors.New("declaration block not found")

var (
	reDeclaration  = regexp.MustCompile(`^([^:]+):(.+)`)
	reSelectorList = regexp.MustCompile(`,\s+`)
)

// Declaration is a single property/value pair. Value is opaque.
type Declaration struct {
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
}

// ExtractDeclarations locates the first block which follows selectorText
// literally in ruleText and splits its interior into declarations. Fragments
// not shaped as "key: rest" are skipped.
func ExtractDeclarations(selectorText, ruleText string) ([]Declaration, error) {
	re := regexp.MustCompile(regexp.QuoteMeta(selectorText) + `\s*\{(\s*[^}]+)\}`)
	m := re.FindStringSubmatch(ruleText)
	if m == nil {
		return nil, fmt.Errorf("selector '%s': %w", selectorText, ErrBlockNotFound)
	}

	var decls []Declaration
	for frag := range strings.SplitSeq(m[1], ";") {
		kv := reDeclaration.FindStringSubmatch(frag)
		if kv == nil {
			continue
		}
		decls = append(decls, Declaration{
			Property: strings.TrimSpace(kv[1]),
			Value:    strings.TrimSpace(kv[2]),
		})
	}
	return decls, nil
}

// ExtractRule extracts declarations of a (possibly comma separated) selector
// list. Every individual selector gets the same declarations, the block is
// located using complete selector text.
func ExtractRule(selectorText, ruleText string) (SelectorRules, error) {
	decls, err := ExtractDeclarations(selectorText, ruleText)
	if err != nil {
		return nil, err
	}

	rules := make(SelectorRules)
	for sel := range strings.SplitSeq(reSelectorList.ReplaceAllString(selectorText, ","), ",") {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		rules[sel] = append(rules[sel], decls...)
	}
	return rules, nil
}
