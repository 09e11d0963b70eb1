package css_test

import (
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"

	"mqwatch/css"
)

// styleRules collects top-level style rules of a sheet. It does NOT flatten
// @media blocks.
func styleRules(sheet *css.Sheet) []*css.StyleRule {
	var rules []*css.StyleRule
	for _, r := range sheet.Rules {
		if sr, ok := r.(*css.StyleRule); ok {
			rules = append(rules, sr)
		}
	}
	return rules
}

func TestParser_ElementSelector(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`div { color: red; margin: 10px; }`))

	rules := styleRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	rule := rules[0]
	if rule.Kind() != css.RuleKindStyle {
		t.Errorf("expected style rule, got %v", rule.Kind())
	}
	if rule.SelectorText() != "div" {
		t.Errorf("expected selector 'div', got '%s'", rule.SelectorText())
	}
	want := []css.Declaration{{Property: "color", Value: "red"}, {Property: "margin", Value: "10px"}}
	if !slices.Equal(rule.Declarations, want) {
		t.Errorf("declarations = %v, want %v", rule.Declarations, want)
	}
	if got := rule.CSSText(); got != "div { color: red; margin: 10px; }" {
		t.Errorf("CSSText() = %q", got)
	}
}

func TestParser_WhitespaceNormalized(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte("ul   li\n{\n\tborder :1px   solid\n red ;\n}"))

	rules := styleRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if rules[0].Selector != "ul li" {
		t.Errorf("expected selector 'ul li', got '%s'", rules[0].Selector)
	}
	if v, ok := rules[0].GetProperty("border"); !ok || v != "1px solid red" {
		t.Errorf("expected border '1px solid red', got '%s' (%v)", v, ok)
	}
}

func TestParser_GroupedSelectors(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`h2, h3,h4 { font-size: 120%; }`))

	rules := styleRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected grouped selector to stay a single rule, got %d", len(rules))
	}
	if rules[0].Selector != "h2, h3, h4" {
		t.Errorf("expected selector 'h2, h3, h4', got '%s'", rules[0].Selector)
	}
	if got := rules[0].Selectors(); !slices.Equal(got, []string{"h2", "h3", "h4"}) {
		t.Errorf("Selectors() = %v", got)
	}
	if got := rules[0].CSSText(); got != "h2, h3, h4 { font-size: 120%; }" {
		t.Errorf("CSSText() = %q", got)
	}
}

func TestParser_Important(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`p { color: red !important; margin: 0; }`))

	rules := styleRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	d := rules[0].Declarations[0]
	if !d.Important || d.Value != "red" {
		t.Errorf("expected important 'red', got %+v", d)
	}
	if rules[0].Declarations[1].Important {
		t.Error("margin must not be important")
	}
	if got := rules[0].CSSText(); got != "p { color: red !important; margin: 0; }" {
		t.Errorf("CSSText() = %q", got)
	}
}

func TestParser_EmptyBlock(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`.empty {}`))

	rules := styleRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if len(rules[0].Declarations) != 0 {
		t.Errorf("expected no declarations, got %v", rules[0].Declarations)
	}
	if got := rules[0].CSSText(); got != ".empty { }" {
		t.Errorf("CSSText() = %q", got)
	}
}

func TestParser_MediaBlockPreserved(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	input := []byte(`
		p { margin: 0; }
		@media (min-width: 600px) {
			.box { width: 50%; }
			.a, .b { x: 1; }
		}
		.test { color: blue; }
	`)
	sheet := p.Parse(input)

	// Should have 3 rules: rule(p), @media block, rule(.test)
	if len(sheet.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(sheet.Rules))
	}
	kinds := []css.RuleKind{sheet.Rules[0].Kind(), sheet.Rules[1].Kind(), sheet.Rules[2].Kind()}
	if !slices.Equal(kinds, []css.RuleKind{css.RuleKindStyle, css.RuleKindMedia, css.RuleKindStyle}) {
		t.Fatalf("unexpected rule kinds %v", kinds)
	}

	mr := sheet.Rules[1]
	if mr.MediaText() != "(min-width: 600px)" {
		t.Errorf("expected media text '(min-width: 600px)', got '%s'", mr.MediaText())
	}
	if mr.SelectorText() != "" {
		t.Errorf("media rule must not have selector text, got '%s'", mr.SelectorText())
	}
	nested := mr.CSSRules()
	if len(nested) != 2 {
		t.Fatalf("expected 2 rules inside @media block, got %d", len(nested))
	}
	if nested[0].SelectorText() != ".box" || nested[0].CSSText() != ".box { width: 50%; }" {
		t.Errorf("unexpected first nested rule %q", nested[0].CSSText())
	}
	if nested[1].SelectorText() != ".a, .b" {
		t.Errorf("unexpected second nested selector %q", nested[1].SelectorText())
	}

	want := "@media (min-width: 600px) {\n  .box { width: 50%; }\n  .a, .b { x: 1; }\n}"
	if got := mr.CSSText(); got != want {
		t.Errorf("CSSText() = %q, want %q", got, want)
	}
	if len(sheet.MediaRules()) != 1 {
		t.Errorf("MediaRules() = %d, want 1", len(sheet.MediaRules()))
	}
}

func TestParser_MediaQueryText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`@media screen and (max-width:480px) { p { x: y; } }`, "screen and (max-width: 480px)"},
		{`@media screen and (max-width : 480px) { p { x: y; } }`, "screen and (max-width: 480px)"},
		{`@media (min-width:600px),print { p { x: y; } }`, "(min-width: 600px), print"},
		{`@media (width>=600px) { p { x: y; } }`, "(width >= 600px)"},
		{`@media (400px <= width) and (height<700px) { p { x: y; } }`, "(400px <= width) and (height < 700px)"},
		{"@media   print  { p { x: y; } }", "print"},
		{`@media (min-width: 600px), print { p { x: y; } }`, "(min-width: 600px), print"},
		{`@media not all and (orientation: portrait) { p { x: y; } }`, "not all and (orientation: portrait)"},
	}

	p := css.NewParser(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			sheet := p.Parse([]byte(tt.input))
			mrs := sheet.MediaRules()
			if len(mrs) != 1 {
				t.Fatalf("expected 1 media rule, got %d", len(mrs))
			}
			if mrs[0].Media != tt.want {
				t.Errorf("media = %q, want %q", mrs[0].Media, tt.want)
			}
		})
	}
}

func TestParser_SelectorText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`div > p { color: red; }`, "div > p"},
		{`div>p { color: red; }`, "div > p"},
		{`ul + li, ol ~ li { color: red; }`, "ul + li, ol ~ li"},
		{`ul+li,ol~li { color: red; }`, "ul + li, ol ~ li"},
		{`.a .b { color: red; }`, ".a .b"},
		{`.a.b { color: red; }`, ".a.b"},
		{`a:hover, p::first-line { color: red; }`, "a:hover, p::first-line"},
		{`li:nth-child(2n+1) { color: red; }`, "li:nth-child(2n+1)"},
		{`a[href~="x"] > b { color: red; }`, `a[href~="x"] > b`},
	}

	p := css.NewParser(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			sheet := p.Parse([]byte(tt.input))
			rules := sheet.RulesBySelector(tt.want)
			if len(rules) != 1 {
				var got []string
				for _, r := range sheet.CSSRules() {
					got = append(got, r.SelectorText())
				}
				t.Fatalf("expected rule with selector %q, got %q", tt.want, got)
			}
			if want := tt.want + " { color: red; }"; rules[0].CSSText() != want {
				t.Errorf("CSSText() = %q, want %q", rules[0].CSSText(), want)
			}
		})
	}
}

func TestParser_NestedMedia(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`@media screen { @media (min-width: 10px) { a { b: c; } } d { e: f; } }`))

	mrs := sheet.MediaRules()
	if len(mrs) != 1 {
		t.Fatalf("expected 1 top level media rule, got %d", len(mrs))
	}
	nested := mrs[0].Rules
	if len(nested) != 2 {
		t.Fatalf("expected 2 nested rules, got %d", len(nested))
	}
	if nested[0].Kind() != css.RuleKindMedia || nested[0].MediaText() != "(min-width: 10px)" {
		t.Errorf("expected nested media rule, got %v %q", nested[0].Kind(), nested[0].MediaText())
	}
	if nested[1].Kind() != css.RuleKindStyle || nested[1].SelectorText() != "d" {
		t.Errorf("expected nested style rule 'd', got %v %q", nested[1].Kind(), nested[1].SelectorText())
	}
}

func TestParser_Import(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	input := []byte(`
		@import url("base.css");
		@import 'print.css' print;
		@import url(plain.css);
		p { color: red; }
	`)
	sheet := p.Parse(input)

	want := []string{"base.css", "print.css", "plain.css"}
	if got := sheet.Imports(); !slices.Equal(got, want) {
		t.Errorf("Imports() = %v, want %v", got, want)
	}
	if sheet.Rules[0].Kind() != css.RuleKindOther {
		t.Errorf("expected @import to be other kind, got %v", sheet.Rules[0].Kind())
	}
	if got := sheet.Rules[0].CSSText(); got != `@import url("base.css");` {
		t.Errorf("CSSText() = %q", got)
	}
}

func TestParser_FontFace(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`@font-face { font-family: "Body"; src: url(body.woff); }`))

	if len(sheet.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(sheet.Rules))
	}
	at, ok := sheet.Rules[0].(*css.AtRule)
	if !ok {
		t.Fatalf("expected *css.AtRule, got %T", sheet.Rules[0])
	}
	if at.Name != "@font-face" || !at.HasBlock {
		t.Errorf("unexpected at-rule %+v", at)
	}
	if len(at.Declarations) != 2 || at.Declarations[0].Property != "font-family" || at.Declarations[0].Value != `"Body"` {
		t.Errorf("unexpected declarations %v", at.Declarations)
	}
	if got := at.CSSText(); got != `@font-face { font-family: "Body"; src: url(body.woff); }` {
		t.Errorf("CSSText() = %q", got)
	}
}

func TestParser_KeyframesReduced(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`@keyframes spin { from { rotate: 0deg; } to { rotate: 360deg; } } p { a: b; }`))

	if len(sheet.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(sheet.Rules))
	}
	if sheet.Rules[0].Kind() != css.RuleKindOther {
		t.Errorf("expected other kind for @keyframes, got %v", sheet.Rules[0].Kind())
	}
	if sheet.Rules[1].SelectorText() != "p" {
		t.Errorf("rule after @keyframes lost, got %q", sheet.Rules[1].SelectorText())
	}
	found := false
	for _, w := range sheet.Warnings {
		if strings.Contains(w, "nested blocks") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected warning about nested blocks, got %v", sheet.Warnings)
	}
}

func TestParser_CommentsIgnored(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`/* header */ p { /* inner */ color: red; }`))

	rules := styleRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if v, ok := rules[0].GetProperty("color"); !ok || v != "red" {
		t.Errorf("expected color red, got %q", v)
	}
}

func TestSheet_StringRoundTrip(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	input := []byte(`
		@import url("a.css");
		div { color: red; margin: 10px; }
		@media (min-width: 600px) { .box { width: 50%; } }
	`)
	first := p.Parse(input)
	second := p.Parse([]byte(first.String()))

	if len(first.Rules) != len(second.Rules) {
		t.Fatalf("rule count changed: %d -> %d", len(first.Rules), len(second.Rules))
	}
	for i := range first.Rules {
		if first.Rules[i].CSSText() != second.Rules[i].CSSText() {
			t.Errorf("rule %d changed: %q -> %q", i, first.Rules[i].CSSText(), second.Rules[i].CSSText())
		}
	}
	if !strings.HasSuffix(first.String(), "}\n") {
		t.Errorf("expected trailing newline, got %q", first.String())
	}
}

func TestRuleKind_String(t *testing.T) {
	for _, name := range css.RuleKindNames() {
		k, err := css.ParseRuleKind(name)
		if err != nil {
			t.Fatalf("ParseRuleKind(%q) error = %v", name, err)
		}
		if k.String() != name {
			t.Errorf("String() = %q, want %q", k.String(), name)
		}
	}
	if _, err := css.ParseRuleKind("bogus"); err == nil {
		t.Error("expected error for unknown rule kind")
	}
}
