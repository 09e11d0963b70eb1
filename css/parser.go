package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses CSS stylesheets into CSSOM-like rules.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Sheet.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Sheet {
	sheet := &Sheet{
		Rules:    make([]Rule, 0),
		Warnings: make([]string, 0),
	}

	if len(source) > 0 && source[0] != "" {
		sheet.Href = source[0]
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	sheet.Rules = p.parseRuleList(parser, sheet, false)
	return sheet
}

// parseRuleList collects rules until end of input or, when nested is set,
// until the end of the enclosing at-rule block.
func (p *Parser) parseRuleList(parser *css.Parser, sheet *Sheet, nested bool) []Rule {
	rules := make([]Rule, 0)

	// selector lists are reported one comma separated part at a time
	var selectorParts []string

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				sheet.Warnings = append(sheet.Warnings, "parse error: "+err.Error())
				p.log.Debug("CSS parse error", zap.Error(err))
			}
			return rules

		case css.EndAtRuleGrammar:
			if nested {
				return rules
			}

		case css.QualifiedRuleGrammar:
			selectorParts = append(selectorParts, serializePrelude(false, data, parser.Values()))

		case css.BeginRulesetGrammar:
			selectorParts = append(selectorParts, serializePrelude(false, data, parser.Values()))
			rule := &StyleRule{
				Selector:     strings.Join(selectorParts, ", "),
				Declarations: p.parseDeclarations(parser, css.EndRulesetGrammar),
			}
			selectorParts = nil
			rules = append(rules, rule)

		case css.AtRuleGrammar:
			// at-rule without block (@import, @charset, @namespace)
			at := &AtRule{Name: strings.ToLower(string(data)), Prelude: serializePrelude(true, nil, parser.Values())}
			if at.Name == "@import" {
				at.URL = extractImportURL(parser.Values())
				p.log.Debug("Parsed @import", zap.String("url", at.URL))
			}
			rules = append(rules, at)

		case css.BeginAtRuleGrammar:
			name := strings.ToLower(string(data))
			prelude := serializePrelude(true, nil, parser.Values())
			if name == "@media" {
				mr := &MediaRule{Media: prelude}
				mr.Rules = p.parseRuleList(parser, sheet, true)
				p.log.Debug("Parsed @media block", zap.String("query", mr.Media), zap.Int("rules", len(mr.Rules)))
				rules = append(rules, mr)
				continue
			}
			at := &AtRule{Name: name, Prelude: prelude, HasBlock: true}
			at.Declarations = p.parseAtRuleBlock(parser, sheet)
			rules = append(rules, at)
		}
	}
}

// parseDeclarations parses property declarations until the given end grammar.
func (p *Parser) parseDeclarations(parser *css.Parser, end css.GrammarType) []Declaration {
	var decls []Declaration

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar, end:
			return decls

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if d, ok := newDeclaration(string(data), parser.Values()); ok {
				decls = append(decls, d)
			}
		}
	}
}

// parseAtRuleBlock keeps top level declarations of an at-rule block skipping
// any nested blocks (e.g. @keyframes steps or @supports rules).
func (p *Parser) parseAtRuleBlock(parser *css.Parser, sheet *Sheet) []Declaration {
	var (
		decls   []Declaration
		skipped int
	)

	depth := 1
	for depth > 0 {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			return decls
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			if depth == 1 {
				skipped++
			}
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if depth != 1 {
				continue
			}
			if d, ok := newDeclaration(string(data), parser.Values()); ok {
				decls = append(decls, d)
			}
		}
	}
	if skipped > 0 {
		sheet.Warnings = append(sheet.Warnings, "nested blocks of at-rule were not preserved")
		p.log.Debug("Skipped nested blocks of at-rule", zap.Int("blocks", skipped))
	}
	return decls
}

func newDeclaration(property string, values []css.Token) (Declaration, bool) {
	d := Declaration{Property: strings.TrimSpace(property)}
	if d.Property == "" {
		return d, false
	}

	// strip trailing "!important" which is reported as regular tokens
	end := len(values)
	for end > 0 && values[end-1].TokenType == css.WhitespaceToken {
		end--
	}
	if end >= 2 && values[end-1].TokenType == css.IdentToken && strings.EqualFold(string(values[end-1].Data), "important") {
		bang := end - 2
		for bang > 0 && values[bang].TokenType == css.WhitespaceToken {
			bang--
		}
		if values[bang].TokenType == css.DelimToken && string(values[bang].Data) == "!" {
			d.Important = true
			end = bang
		}
	}

	d.Value = joinTokens(values[:end])
	return d, true
}

// joinTokens builds normalized text from tokens: whitespace runs are collapsed
// into single space, leading and trailing whitespace removed.
func joinTokens(tokens []css.Token) string {
	var sb strings.Builder
	pendingSpace := false
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken || t.TokenType == css.CommentToken {
			pendingSpace = sb.Len() > 0
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}

// serializePrelude builds canonical CSSOM text of selector list or at-rule
// prelude, e.g. "h2, div > p" and "screen and (min-width: 600px)". Grammar
// parser drops whitespace around commas, colons and combinators, separators
// around those are derived from token types.
func serializePrelude(atRule bool, first []byte, tokens []css.Token) string {
	type item struct {
		tt    css.TokenType
		data  string
		space bool // whitespace preceded the token
	}

	var (
		items []item
		space bool
	)
	add := func(tt css.TokenType, data []byte) {
		if tt == css.WhitespaceToken || tt == css.CommentToken {
			space = true
			return
		}
		items = append(items, item{tt: tt, data: string(data), space: space})
		space = false
	}
	if first = bytes.TrimSpace(first); len(first) > 0 {
		add(css.IdentToken, first)
	}
	for _, t := range tokens {
		add(t.TokenType, t.Data)
	}

	// operator reports whether token at i is combinator (selectors) or
	// comparison (at-rule preludes) at the current nesting level
	var parens, brackets int
	operator := func(i int) bool {
		it := items[i]
		if it.tt != css.DelimToken || brackets > 0 {
			return false
		}
		if atRule {
			return parens > 0 && (it.data == "<" || it.data == ">" || it.data == "=")
		}
		return parens == 0 && (it.data == ">" || it.data == "+" || it.data == "~")
	}

	var sb strings.Builder
	prevOp := false
	for i, it := range items {
		op := operator(i)
		if i > 0 {
			prev := items[i-1]
			gap := it.space
			switch {
			case it.tt == css.CommaToken, it.tt == css.RightParenthesisToken, it.tt == css.RightBracketToken,
				prev.tt == css.LeftParenthesisToken, prev.tt == css.FunctionToken, prev.tt == css.LeftBracketToken:
				gap = false
			case op && prevOp && it.data == "=":
				// second half of "<=" or ">="
				gap = false
			case prev.tt == css.CommaToken, op, prevOp:
				gap = true
			case atRule && it.tt == css.ColonToken:
				gap = false
			case atRule && prev.tt == css.ColonToken && parens > 0:
				gap = true
			case !atRule && prev.tt == css.ColonToken:
				gap = false
			case atRule && (it.tt == css.LeftParenthesisToken || prev.tt == css.RightParenthesisToken):
				gap = true
			case prev.tt == css.IdentToken && it.tt == css.IdentToken:
				gap = true
			}
			if gap {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(it.data)

		switch it.tt {
		case css.LeftParenthesisToken, css.FunctionToken:
			parens++
		case css.RightParenthesisToken:
			parens = max(parens-1, 0)
		case css.LeftBracketToken:
			brackets++
		case css.RightBracketToken:
			brackets = max(brackets-1, 0)
		}
		prevOp = op
	}
	return sb.String()
}

// extractImportURL extracts the URL from @import tokens.
// Handles: @import "url"; @import url("url"); @import url(url);
func extractImportURL(tokens []css.Token) string {
	for i, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			return unquote(string(t.Data))
		case css.URLToken:
			// url(something) - the token data is the full url(...) string
			s := string(t.Data)
			s = strings.TrimPrefix(s, "url(")
			s = strings.TrimSuffix(s, ")")
			return unquote(strings.TrimSpace(s))
		case css.FunctionToken:
			// url( "quoted" ) is lexed as function followed by string
			if strings.EqualFold(string(t.Data), "url(") {
				for _, next := range tokens[i+1:] {
					if next.TokenType == css.StringToken {
						return unquote(string(next.Data))
					}
				}
			}
		}
	}
	return ""
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
