package watcher

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"mqwatch/css"
	"mqwatch/diag"
	"mqwatch/media"
)

// brokenRule is a style rule whose text has no block for its selector.
type brokenRule struct {
	selector string
}

func (r brokenRule) Kind() css.RuleKind   { return css.RuleKindStyle }
func (r brokenRule) SelectorText() string { return r.selector }
func (r brokenRule) CSSText() string      { return r.selector + " color: red;" }
func (r brokenRule) MediaText() string    { return "" }
func (r brokenRule) CSSRules() []css.Rule { return nil }

func parse(t *testing.T, src string) *css.Sheet {
	t.Helper()
	return css.NewParser(zaptest.NewLogger(t)).Parse([]byte(src))
}

func desktop(t *testing.T) *media.Environment {
	t.Helper()
	return media.NewEnvironment(media.Viewport{Width: 800, Height: 600}, zaptest.NewLogger(t))
}

func TestAddMediaQueriesListener_PlainRule(t *testing.T) {
	w := New(desktop(t), zaptest.NewLogger(t))

	matched, err := w.AddMediaQueriesListener(parse(t, "div { color: red; margin: 10px; }"), nil)
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule}) {
		t.Errorf("matched = %q", matched)
	}

	want := []Declaration{{"color", "red"}, {"margin", "10px"}}
	if got := w.Rules(NoMediaRule)["div"]; !slices.Equal(got, want) {
		t.Errorf("index[%s][div] = %+v, want %+v", NoMediaRule, got, want)
	}
}

func TestAddMediaQueriesListener_MatchingMediaGroup(t *testing.T) {
	w := New(desktop(t), zaptest.NewLogger(t))

	matched, err := w.AddMediaQueriesListener(parse(t, "@media (min-width: 600px) { .box { width: 50%; } }"), nil)
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule, "(min-width: 600px)"}) {
		t.Errorf("matched = %q", matched)
	}
	if got := w.Rules("(min-width: 600px)")[".box"]; !slices.Equal(got, []Declaration{{"width", "50%"}}) {
		t.Errorf("unexpected .box declarations %+v", got)
	}
}

func TestAddMediaQueriesListener_NotMatchingMediaGroup(t *testing.T) {
	w := New(desktop(t), zaptest.NewLogger(t))

	matched, err := w.AddMediaQueriesListener(parse(t, "@media print { .box { display: none; } }"), nil)
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule}) {
		t.Errorf("matched = %q", matched)
	}
	if got := w.Rules("print")[".box"]; !slices.Equal(got, []Declaration{{"display", "none"}}) {
		t.Errorf("non matching groups must still be indexed, got %+v", got)
	}
}

func TestAddMediaQueriesListener_SelectorList(t *testing.T) {
	w := New(desktop(t), zaptest.NewLogger(t))

	if _, err := w.AddMediaQueriesListener(parse(t, ".a, .b { x: 1; }"), nil); err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	rules := w.Rules(NoMediaRule)
	want := []Declaration{{"x", "1"}}
	if !slices.Equal(rules[".a"], want) || !slices.Equal(rules[".b"], want) {
		t.Errorf("unexpected rules %+v", rules)
	}
}

func TestAddMediaQueriesListener_NilSheet(t *testing.T) {
	env := desktop(t)
	w := New(env, zaptest.NewLogger(t))

	matched, err := w.AddMediaQueriesListener(nil, func(media.Change) {})
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule}) {
		t.Errorf("matched = %q", matched)
	}
	if len(w.Index()) != 0 || env.Listeners() != 0 {
		t.Errorf("nil sheet must not change anything")
	}

	var sheet *css.Sheet
	if matched, err = w.AddMediaQueriesListener(sheet, nil); err != nil || len(matched) != 1 {
		t.Errorf("nil *Sheet: matched = %q, err = %v", matched, err)
	}
}

func TestAddMediaQueriesListener_AdditiveMerge(t *testing.T) {
	env := desktop(t)
	w := New(env, zaptest.NewLogger(t))
	onChange := func(media.Change) {}

	src := `
@media (min-width: 600px) { .a { x: 1; } }
@media (min-width: 600px) { .a { y: 2; } }
.a { z: 0; }
`
	matched, err := w.AddMediaQueriesListener(parse(t, src), onChange)
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule, "(min-width: 600px)", "(min-width: 600px)"}) {
		t.Errorf("duplicated groups must be reported twice, matched = %q", matched)
	}
	if env.Listeners() != 2 {
		t.Errorf("expected listener per group, got %d", env.Listeners())
	}

	// second scan keeps merging into the same entries
	if _, err := w.AddMediaQueriesListener(parse(t, "@media (min-width: 600px) { .a { x: 3; } } .a { z: 4; }"), onChange); err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}

	want := []Declaration{{"x", "1"}, {"y", "2"}, {"x", "3"}}
	if got := w.Rules("(min-width: 600px)")[".a"]; !slices.Equal(got, want) {
		t.Errorf("media .a = %+v, want %+v", got, want)
	}
	want = []Declaration{{"z", "0"}, {"z", "4"}}
	if got := w.Rules(NoMediaRule)[".a"]; !slices.Equal(got, want) {
		t.Errorf("plain .a = %+v, want %+v", got, want)
	}
	if !slices.Equal(w.Media(), []string{"(min-width: 600px)", NoMediaRule}) {
		t.Errorf("Media() = %q", w.Media())
	}
	if env.Listeners() != 3 {
		t.Errorf("expected 3 listeners, got %d", env.Listeners())
	}
}

func TestAddMediaQueriesListener_OtherRulesIgnored(t *testing.T) {
	w := New(desktop(t), zaptest.NewLogger(t))

	src := `
@import url("other.css");
@font-face { font-family: X; src: url(x.woff); }
@media screen {
  @media (min-width: 10px) { .deep { a: 1; } }
  .shallow { b: 2; }
}
`
	if _, err := w.AddMediaQueriesListener(parse(t, src), nil); err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if len(w.Index()) != 1 {
		t.Fatalf("expected only media group to be indexed, got %q", slices.Collect(maps.Keys(w.Index())))
	}
	rules := w.Rules("screen")
	if len(rules) != 1 || !slices.Equal(rules[".shallow"], []Declaration{{"b", "2"}}) {
		t.Errorf("unexpected screen rules %+v", rules)
	}
}

func TestAddMediaQueriesListener_MalformedPropagates(t *testing.T) {
	collector := diag.New(zaptest.NewLogger(t))
	w := New(desktop(t), zaptest.NewLogger(t), WithErrorLogger(collector))

	sheet := &css.Sheet{Rules: []css.Rule{
		&css.StyleRule{Selector: "div", Declarations: []css.Declaration{{Property: "color", Value: "red"}}},
		brokenRule{selector: "span"},
		&css.StyleRule{Selector: "p", Declarations: []css.Declaration{{Property: "margin", Value: "0"}}},
	}}

	matched, err := w.AddMediaQueriesListener(sheet, nil)
	if !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule}) {
		t.Errorf("matched = %q", matched)
	}

	rules := w.Rules(NoMediaRule)
	if _, ok := rules["div"]; !ok {
		t.Error("rules merged before failure must be kept")
	}
	if _, ok := rules["span"]; ok {
		t.Error("malformed rule must not be indexed")
	}
	if _, ok := rules["p"]; ok {
		t.Error("scan must stop at malformed rule")
	}

	records := collector.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 diagnostic record, got %d", len(records))
	}
	r := records[0]
	if r.ComponentID != ComponentID || r.Code != CodeBlockNotFound {
		t.Errorf("unexpected record %+v", r)
	}
	if r.Data["selector"] != "span" || r.Data["media"] != NoMediaRule {
		t.Errorf("unexpected record data %+v", r.Data)
	}
}

func TestAddMediaQueriesListener_MalformedSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	collector := diag.New(zaptest.NewLogger(t))
	w := New(desktop(t), zap.New(core), WithErrorLogger(collector), WithSkipMalformed())

	sheet := &css.Sheet{Rules: []css.Rule{
		brokenRule{selector: "span"},
		&css.MediaRule{Media: "(min-width: 600px)", Rules: []css.Rule{
			brokenRule{selector: ".x"},
			&css.StyleRule{Selector: ".y", Declarations: []css.Declaration{{Property: "y", Value: "1"}}},
		}},
		&css.StyleRule{Selector: "p", Declarations: []css.Declaration{{Property: "margin", Value: "0"}}},
	}}

	matched, err := w.AddMediaQueriesListener(sheet, nil)
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule, "(min-width: 600px)"}) {
		t.Errorf("matched = %q", matched)
	}
	if _, ok := w.Rules(NoMediaRule)["p"]; !ok {
		t.Error("scan must continue after malformed rule")
	}
	if _, ok := w.Rules("(min-width: 600px)")[".y"]; !ok {
		t.Error("scan must continue inside media group after malformed rule")
	}

	if n := len(collector.Records()); n != 2 {
		t.Errorf("expected 2 diagnostic records, got %d", n)
	}
	warns := logs.FilterMessage("Malformed rules were skipped").All()
	if len(warns) != 1 {
		t.Fatalf("expected single warning, got %d", len(warns))
	}
	if warns[0].ContextMap()["count"] != int64(2) {
		t.Errorf("unexpected warning fields %v", warns[0].ContextMap())
	}
}

func TestNew_ErrorLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	New(nil, zap.New(core))
	New(nil, zap.New(core), WithErrorLogger(diag.New(nil)))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "Error logger is not defined" || entries[1].Message != "Error logger is defined" {
		t.Errorf("unexpected messages %q, %q", entries[0].Message, entries[1].Message)
	}
}

func TestWatcher_NilOracle(t *testing.T) {
	w := New(nil, zaptest.NewLogger(t))

	matched, err := w.AddMediaQueriesListener(parse(t, "@media all { a { b: c; } }"), func(media.Change) {})
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule}) {
		t.Errorf("matched = %q", matched)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWatcher_ChangeListener(t *testing.T) {
	env := desktop(t)
	w := New(env, zaptest.NewLogger(t))

	src := `
.title { font-size: 12px; }
@media (min-width: 600px) { .title { font-size: 16px; } }
@media (min-width: 1000px) { .title { font-size: 20px; } }
`
	var (
		states  [][]string
		changes []media.Change
	)
	onChange := func(c media.Change) {
		changes = append(changes, c)
		states = append(states, w.Matched())
	}

	matched, err := w.AddMediaQueriesListener(parse(t, src), onChange)
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, w.Matched()) {
		t.Errorf("Matched() = %q differs from scan result %q", w.Matched(), matched)
	}

	resolve := func(matched []string) string {
		return w.ResolveMatched(matched, []string{".title"}, []string{"font-size"})["font-size"]
	}
	if got := resolve(matched); got != "16px" {
		t.Errorf("font-size at 800px = %q", got)
	}

	env.Update(media.Viewport{Width: 1200, Height: 600})
	if len(changes) != 1 || changes[0] != (media.Change{Media: "(min-width: 1000px)", Matches: true}) {
		t.Fatalf("unexpected changes %+v", changes)
	}
	if got := resolve(states[0]); got != "20px" {
		t.Errorf("font-size at 1200px = %q", got)
	}

	env.Update(media.Viewport{Width: 400, Height: 600})
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %+v", changes)
	}
	if got := resolve(states[2]); got != "12px" {
		t.Errorf("font-size at 400px = %q", got)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if env.Listeners() != 0 {
		t.Errorf("expected no listeners after Close, got %d", env.Listeners())
	}
	env.Update(media.Viewport{Width: 1200, Height: 600})
	if len(changes) != 3 {
		t.Errorf("listener called after Close")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if len(w.Index()) != 3 {
		t.Errorf("Close must keep index")
	}
}

func TestWatcher_CloseReportsForeignUnsubscribe(t *testing.T) {
	env := desktop(t)
	w := New(env, zaptest.NewLogger(t))

	if _, err := w.AddMediaQueriesListener(parse(t, "@media print { a { b: c; } }"), func(media.Change) {}); err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	for _, id := range w.subs {
		env.Unsubscribe(id)
	}
	if err := w.Close(); err == nil {
		t.Error("expected error for listener removed behind watcher back")
	}
}

func TestWatcher_Resolve(t *testing.T) {
	w := New(desktop(t), zaptest.NewLogger(t))

	src := `
.high { color: blue; }
.low { color: red; }
@media (min-width: 600px) { .low { color: green; } }
`
	if _, err := w.AddMediaQueriesListener(parse(t, src), nil); err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}

	got, _ := w.Resolve(NoMediaRule, []string{".high", ".low"}, []string{"color"})
	if !maps.Equal(got, map[string]string{"color": "blue"}) {
		t.Errorf("Resolve() = %v", got)
	}

	got, remaining := w.Resolve("(max-width: 10px)", []string{".high", ".low"}, []string{"color"})
	if len(got) != 0 || !slices.Equal(remaining, []string{"color"}) {
		t.Errorf("unobserved media key must resolve nothing, got %v", got)
	}

	// later matching key overrides
	all := w.ResolveMatched([]string{NoMediaRule, "(min-width: 600px)"}, []string{".low"}, []string{"color"})
	if all["color"] != "green" {
		t.Errorf("ResolveMatched() = %v", all)
	}
}

func TestWatcher_ResolveCombinators(t *testing.T) {
	w := New(desktop(t), zaptest.NewLogger(t))

	src := `
div>p { color: red; }
ul+li,ol~li { margin: 0; }
@media (min-width:600px) { div > p { color: green; } }
`
	matched, err := w.AddMediaQueriesListener(parse(t, src), nil)
	if err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if !slices.Equal(matched, []string{NoMediaRule, "(min-width: 600px)"}) {
		t.Errorf("matched = %q", matched)
	}

	got, remaining := w.Resolve(NoMediaRule, []string{"div > p"}, []string{"color"})
	if !maps.Equal(got, map[string]string{"color": "red"}) || len(remaining) != 0 {
		t.Errorf("Resolve(div > p) = %v, unresolved %v", got, remaining)
	}

	for _, sel := range []string{"ul + li", "ol ~ li"} {
		got, _ := w.Resolve(NoMediaRule, []string{sel}, []string{"margin"})
		if got["margin"] != "0" {
			t.Errorf("Resolve(%s) = %v", sel, got)
		}
	}

	all := w.ResolveMatched(matched, []string{"div > p"}, []string{"color"})
	if all["color"] != "green" {
		t.Errorf("ResolveMatched() = %v", all)
	}
}

func TestWatcher_Independent(t *testing.T) {
	env := desktop(t)
	w1 := New(env, zaptest.NewLogger(t))
	w2 := New(env, zaptest.NewLogger(t))

	if _, err := w1.AddMediaQueriesListener(parse(t, "a { b: c; }"), nil); err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}
	if len(w2.Index()) != 0 {
		t.Errorf("watchers must not share index")
	}
}

func TestDump(t *testing.T) {
	w := New(desktop(t), zaptest.NewLogger(t))

	src := `
@media (min-width: 1000px) { .b { x: 1; } }
@media (min-width: 600px) { .a2 { y: ""; } .a10 { z: 2; } }
div { color: red; }
`
	if _, err := w.AddMediaQueriesListener(parse(t, src), nil); err != nil {
		t.Fatalf("AddMediaQueriesListener() error = %v", err)
	}

	want := strings.Join([]string{
		`MediaRuleIndex (3 media keys)`,
		`  Media["noMediaRule"] (1 selectors)`,
		`    Selector["div"] (1 declarations)`,
		`      color: red`,
		`  Media["(min-width: 600px)"] (2 selectors)`,
		`    Selector[".a2"] (1 declarations)`,
		`      y: "\"\""`,
		`    Selector[".a10"] (1 declarations)`,
		`      z: 2`,
		`  Media["(min-width: 1000px)"] (1 selectors)`,
		`    Selector[".b"] (1 declarations)`,
		`      x: 1`,
		``,
	}, "\n")
	if got := w.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}
