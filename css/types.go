package css

import (
	"fmt"
	"io"
	"strings"
)

// cssEscapeDoubleQuoted escapes a string for use inside CSS double quotes.
// Backslashes and double quotes are escaped per CSS syntax: \" and \\.
func cssEscapeDoubleQuoted(s string) string {
	// Fast path: nothing to escape.
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Rule is a single stylesheet rule shaped after CSSOM: consumers look at the
// kind, selector text, serialized rule text and, for grouping rules, the
// media text and nested rules.
type Rule interface {
	Kind() RuleKind
	SelectorText() string // empty for anything but style rules
	CSSText() string      // serialized rule including its block
	MediaText() string    // empty for anything but media rules
	CSSRules() []Rule     // nested rules of grouping rules
}

// StyleSheet is an ordered list of top-level rules.
type StyleSheet interface {
	CSSRules() []Rule
}

// Declaration is a single "property: value" pair as it appears in a rule block.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important;"
	}
	return d.Property + ": " + d.Value + ";"
}

// StyleRule is a selector list with its declaration block.
type StyleRule struct {
	Selector     string // canonical selector list text, e.g. "h2, div > p"
	Declarations []Declaration
}

func (r *StyleRule) Kind() RuleKind       { return RuleKindStyle }
func (r *StyleRule) SelectorText() string { return r.Selector }
func (r *StyleRule) MediaText() string    { return "" }
func (r *StyleRule) CSSRules() []Rule     { return nil }

// CSSText serializes rule on a single line: "sel { a: b; c: d; }".
func (r *StyleRule) CSSText() string {
	var sb strings.Builder
	sb.WriteString(r.Selector)
	sb.WriteString(" {")
	writeDeclarations(&sb, r.Declarations)
	sb.WriteString(" }")
	return sb.String()
}

// Selectors returns individual selectors of the rule selector list.
func (r *StyleRule) Selectors() []string {
	var out []string
	for s := range strings.SplitSeq(r.Selector, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GetProperty returns the last value declared for the property.
func (r *StyleRule) GetProperty(name string) (string, bool) {
	for i := len(r.Declarations) - 1; i >= 0; i-- {
		if r.Declarations[i].Property == name {
			return r.Declarations[i].Value, true
		}
	}
	return "", false
}

// MediaRule is a @media conditional group.
type MediaRule struct {
	Media string // media query list text
	Rules []Rule
}

func (r *MediaRule) Kind() RuleKind       { return RuleKindMedia }
func (r *MediaRule) SelectorText() string { return "" }
func (r *MediaRule) MediaText() string    { return r.Media }
func (r *MediaRule) CSSRules() []Rule     { return r.Rules }

// CSSText serializes group with nested rules indented one per line.
func (r *MediaRule) CSSText() string {
	var sb strings.Builder
	sb.WriteString("@media ")
	sb.WriteString(r.Media)
	sb.WriteString(" {\n")
	for _, nested := range r.Rules {
		for line := range strings.SplitSeq(nested.CSSText(), "\n") {
			sb.WriteString("  ")
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// AtRule is any other at-rule (@import, @charset, @font-face, @page, @keyframes, ...).
// Only top level declarations of its block are kept.
type AtRule struct {
	Name         string // including "@"
	Prelude      string
	URL          string // @import target
	HasBlock     bool
	Declarations []Declaration
}

func (r *AtRule) Kind() RuleKind       { return RuleKindOther }
func (r *AtRule) SelectorText() string { return "" }
func (r *AtRule) MediaText() string    { return "" }
func (r *AtRule) CSSRules() []Rule     { return nil }

func (r *AtRule) CSSText() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	switch {
	case r.Name == "@import" && r.URL != "":
		fmt.Fprintf(&sb, " url(\"%s\")", cssEscapeDoubleQuoted(r.URL))
	case r.Prelude != "":
		sb.WriteByte(' ')
		sb.WriteString(r.Prelude)
	}
	if !r.HasBlock {
		sb.WriteByte(';')
		return sb.String()
	}
	sb.WriteString(" {")
	writeDeclarations(&sb, r.Declarations)
	sb.WriteString(" }")
	return sb.String()
}

// writeDeclarations writes declarations in source order, each preceded by a space.
func writeDeclarations(sb *strings.Builder, decls []Declaration) {
	for _, d := range decls {
		sb.WriteByte(' ')
		sb.WriteString(d.String())
	}
}

// Sheet is a parsed stylesheet.
type Sheet struct {
	Href     string // where sheet was loaded from, if known
	Charset  string // encoding sheet was decoded from, if known
	Rules    []Rule // all top-level rules in source order
	Warnings []string
}

func (s *Sheet) CSSRules() []Rule {
	if s == nil {
		return nil
	}
	return s.Rules
}

// Imports returns all @import URLs from the stylesheet in source order.
func (s *Sheet) Imports() []string {
	var urls []string
	for _, r := range s.Rules {
		if at, ok := r.(*AtRule); ok && at.Name == "@import" && at.URL != "" {
			urls = append(urls, at.URL)
		}
	}
	return urls
}

// RulesBySelector returns all top-level style rules with exactly this selector text.
func (s *Sheet) RulesBySelector(selector string) []*StyleRule {
	var matches []*StyleRule
	for _, r := range s.Rules {
		if sr, ok := r.(*StyleRule); ok && sr.Selector == selector {
			matches = append(matches, sr)
		}
	}
	return matches
}

// MediaRules returns all top-level @media groups in source order.
func (s *Sheet) MediaRules() []*MediaRule {
	var out []*MediaRule
	for _, r := range s.Rules {
		if mr, ok := r.(*MediaRule); ok {
			out = append(out, mr)
		}
	}
	return out
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
func (s *Sheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, r := range s.Rules {
		sep := "\n"
		if i < len(s.Rules)-1 {
			// blank line between rules
			sep = "\n\n"
		}
		n, err := io.WriteString(w, r.CSSText()+sep)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// String returns the CSS text of the stylesheet.
func (s *Sheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}
