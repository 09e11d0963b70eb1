// Package media evaluates media queries against a viewport and notifies
// subscribers when query match state changes.
package media

import (
	"math"
	"strconv"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

const (
	defaultType        = "screen"
	defaultColorScheme = "light"
	colorBits          = 8
)

// Viewport describes rendering environment media queries are evaluated against.
type Viewport struct {
	Type        string  // media type, "screen" when empty
	Width       float64 // CSS px
	Height      float64 // CSS px
	Resolution  float64 // dppx, 1 when zero
	ColorScheme string  // "light" or "dark", light when empty
}

func (v Viewport) normalized() Viewport {
	if v.Type == "" {
		v.Type = defaultType
	}
	v.Type = strings.ToLower(v.Type)
	if v.Resolution <= 0 {
		v.Resolution = 1
	}
	if v.ColorScheme == "" {
		v.ColorScheme = defaultColorScheme
	}
	v.ColorScheme = strings.ToLower(v.ColorScheme)
	return v
}

// Orientation returns "portrait" when height is greater or equal to width.
func (v Viewport) Orientation() string {
	if v.Height >= v.Width {
		return "portrait"
	}
	return "landscape"
}

// Feature is a single parenthesized media feature test. Prefixed forms are
// converted into comparisons: (min-width: 10px) becomes width >= 10px.
type Feature struct {
	Name  string
	Op    string // "" for boolean context, otherwise one of = < <= > >=
	Value string
}

// Query is one entry of a comma separated media query list.
type Query struct {
	Raw      string
	Negated  bool
	Only     bool
	Type     string // "all" when omitted
	Features []Feature
	Invalid  bool // malformed queries never match, not even when negated
}

// QueryList is a parsed media query list.
type QueryList struct {
	Raw     string
	Queries []Query
}

// Parse parses media query list text. It never fails: malformed queries are
// marked invalid and evaluate to false.
func Parse(text string) QueryList {
	list := QueryList{Raw: strings.TrimSpace(text)}

	var (
		part  []css.Token
		depth int
	)
	l := css.NewLexer(parse.NewInput(strings.NewReader(text)))
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			break
		}
		switch tt {
		case css.WhitespaceToken, css.CommentToken:
			continue
		case css.LeftParenthesisToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		case css.CommaToken:
			if depth == 0 {
				list.Queries = append(list.Queries, parseQuery(part))
				part = nil
				continue
			}
		}
		part = append(part, css.Token{TokenType: tt, Data: append([]byte(nil), data...)})
	}
	if len(part) > 0 || len(list.Queries) > 0 {
		list.Queries = append(list.Queries, parseQuery(part))
	}
	return list
}

// Evaluate reports whether any query of the list matches. Empty list matches.
func (l QueryList) Evaluate(vp Viewport) bool {
	if len(l.Queries) == 0 {
		return true
	}
	vp = vp.normalized()
	for _, q := range l.Queries {
		if q.evaluate(vp) {
			return true
		}
	}
	return false
}

// Evaluate reports whether query matches viewport.
func (q Query) Evaluate(vp Viewport) bool {
	return q.evaluate(vp.normalized())
}

func (q Query) evaluate(vp Viewport) bool {
	if q.Invalid {
		return false
	}
	res := q.Type == "all" || q.Type == vp.Type
	for _, f := range q.Features {
		if !res {
			break
		}
		res = f.evaluate(vp)
	}
	if q.Negated {
		return !res
	}
	return res
}

func parseQuery(tokens []css.Token) Query {
	q := Query{Raw: tokensText(tokens, " "), Type: "all"}
	if len(tokens) == 0 {
		q.Invalid = true
		return q
	}

	i := 0
	ident := func(name string) bool {
		return i < len(tokens) && tokens[i].TokenType == css.IdentToken && strings.EqualFold(string(tokens[i].Data), name)
	}
	invalid := func() Query {
		q.Invalid = true
		return q
	}

	// condition only query does not expect "and" before the first feature
	expectAnd := false
	if tokens[0].TokenType == css.IdentToken {
		switch {
		case ident("not"):
			q.Negated = true
			i++
		case ident("only"):
			q.Only = true
			i++
		}
		switch {
		case i < len(tokens) && q.Negated && tokens[i].TokenType == css.LeftParenthesisToken:
			// not (condition)
		case i >= len(tokens) || tokens[i].TokenType != css.IdentToken || ident("and"):
			return invalid()
		default:
			q.Type = strings.ToLower(string(tokens[i].Data))
			i++
			expectAnd = true
		}
	}

	for i < len(tokens) {
		if expectAnd {
			if !ident("and") {
				return invalid()
			}
			i++
		}
		expectAnd = true

		if i >= len(tokens) || tokens[i].TokenType != css.LeftParenthesisToken {
			return invalid()
		}
		end := i + 1
		for depth := 1; end < len(tokens); end++ {
			switch tokens[end].TokenType {
			case css.LeftParenthesisToken, css.FunctionToken:
				depth++
			case css.RightParenthesisToken:
				depth--
			}
			if depth == 0 {
				break
			}
		}
		if end >= len(tokens) {
			return invalid()
		}
		f, ok := parseFeature(tokens[i+1 : end])
		if !ok {
			return invalid()
		}
		q.Features = append(q.Features, f)
		i = end + 1
	}
	return q
}

func parseFeature(tokens []css.Token) (Feature, bool) {
	if len(tokens) == 0 {
		return Feature{}, false
	}

	// (name)
	if len(tokens) == 1 {
		if tokens[0].TokenType != css.IdentToken {
			return Feature{}, false
		}
		return Feature{Name: strings.ToLower(string(tokens[0].Data))}, true
	}

	// (name: value) including min-/max- prefixed names
	if tokens[0].TokenType == css.IdentToken && tokens[1].TokenType == css.ColonToken {
		if len(tokens) < 3 {
			return Feature{}, false
		}
		f := Feature{Name: strings.ToLower(string(tokens[0].Data)), Op: "=", Value: tokensText(tokens[2:], "")}
		switch {
		case strings.HasPrefix(f.Name, "min-"):
			f.Name, f.Op = strings.TrimPrefix(f.Name, "min-"), ">="
		case strings.HasPrefix(f.Name, "max-"):
			f.Name, f.Op = strings.TrimPrefix(f.Name, "max-"), "<="
		}
		return f, true
	}

	// (name op value)
	if tokens[0].TokenType == css.IdentToken {
		op, n := rangeOp(tokens[1:])
		if n == 0 || 1+n >= len(tokens) {
			return Feature{}, false
		}
		return Feature{Name: strings.ToLower(string(tokens[0].Data)), Op: op, Value: tokensText(tokens[1+n:], "")}, true
	}

	// (value op name)
	last := len(tokens) - 1
	if tokens[last].TokenType != css.IdentToken {
		return Feature{}, false
	}
	for i := 1; i < last; i++ {
		if tokens[i].TokenType != css.DelimToken {
			continue
		}
		op, n := rangeOp(tokens[i:last])
		if n == 0 || i+n != last {
			return Feature{}, false
		}
		return Feature{Name: strings.ToLower(string(tokens[last].Data)), Op: flipOp(op), Value: tokensText(tokens[:i], "")}, true
	}
	return Feature{}, false
}

// rangeOp reads comparison operator from leading delimiter tokens, returns
// operator and number of tokens consumed.
func rangeOp(tokens []css.Token) (string, int) {
	var op strings.Builder
	n := 0
	for ; n < len(tokens) && n < 2 && tokens[n].TokenType == css.DelimToken; n++ {
		op.WriteString(string(tokens[n].Data))
	}
	switch op.String() {
	case "<", "<=", ">", ">=", "=":
		return op.String(), n
	}
	return "", 0
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	}
	return op
}

func (f Feature) evaluate(vp Viewport) bool {
	switch f.Name {
	case "width":
		return f.compareLength(vp.Width)
	case "height":
		return f.compareLength(vp.Height)
	case "aspect-ratio":
		if vp.Height == 0 {
			return false
		}
		if f.Op == "" {
			return true
		}
		want, ok := parseRatio(f.Value)
		return ok && compare(vp.Width/vp.Height, f.Op, want)
	case "orientation":
		if f.Op == "" {
			return true
		}
		return f.Op == "=" && strings.EqualFold(f.Value, vp.Orientation())
	case "resolution":
		if f.Op == "" {
			return vp.Resolution > 0
		}
		want, ok := parseResolution(f.Value)
		return ok && compare(vp.Resolution, f.Op, want)
	case "prefers-color-scheme":
		if f.Op == "" {
			return true
		}
		return f.Op == "=" && strings.EqualFold(f.Value, vp.ColorScheme)
	case "color":
		if f.Op == "" {
			return true
		}
		want, err := strconv.ParseFloat(f.Value, 64)
		return err == nil && compare(colorBits, f.Op, want)
	}
	return false
}

func (f Feature) compareLength(actual float64) bool {
	if f.Op == "" {
		return actual != 0
	}
	want, ok := parseLength(f.Value)
	return ok && compare(actual, f.Op, want)
}

const epsilon = 1e-9

func compare(actual float64, op string, want float64) bool {
	switch op {
	case "=":
		return math.Abs(actual-want) < epsilon
	case "<":
		return actual < want-epsilon
	case "<=":
		return actual <= want+epsilon
	case ">":
		return actual > want+epsilon
	case ">=":
		return actual >= want-epsilon
	}
	return false
}

// lengths in CSS px
var lengthUnits = map[string]float64{
	"px":  1,
	"em":  16,
	"rem": 16,
	"in":  96,
	"cm":  96 / 2.54,
	"mm":  96 / 25.4,
	"q":   96 / 101.6,
	"pt":  96.0 / 72,
	"pc":  16,
}

// resolutions in dppx
var resolutionUnits = map[string]float64{
	"dppx": 1,
	"x":    1,
	"dpi":  1.0 / 96,
	"dpcm": 2.54 / 96,
}

func parseLength(s string) (float64, bool) {
	num, unit, ok := splitDimension(s)
	if !ok {
		return 0, false
	}
	if unit == "" {
		return num, num == 0
	}
	factor, ok := lengthUnits[unit]
	return num * factor, ok
}

func parseResolution(s string) (float64, bool) {
	num, unit, ok := splitDimension(s)
	if !ok {
		return 0, false
	}
	factor, ok := resolutionUnits[unit]
	return num * factor, ok
}

func parseRatio(s string) (float64, bool) {
	num, den, found := strings.Cut(s, "/")
	a, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	if !found {
		return a, true
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil || b == 0 {
		return 0, false
	}
	return a / b, true
}

// splitDimension splits "600px" into 600 and "px".
func splitDimension(s string) (float64, string, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || ((r == '-' || r == '+') && i == 0) {
			end = i + 1
			continue
		}
		break
	}
	if end == 0 {
		return 0, "", false
	}
	num, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, "", false
	}
	return num, strings.ToLower(s[end:]), true
}

func tokensText(tokens []css.Token, sep string) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		parts = append(parts, string(t.Data))
	}
	return strings.Join(parts, sep)
}
