// Package expand substitutes variables, command output, and tildes
// into tokenized words before they reach the command graph.
package expand

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Charles-JpEG/pysh/core/token"
)

// ErrUndefinedVariable is reported for a `$name` with no binding when
// the session is configured to reject those.
var ErrUndefinedVariable = errors.New("undefined variable")

// Expander resolves substitutions against a live namespace. Lookup
// answers variable references, Capture runs a command line and returns
// its standard output, Home backs tilde expansion. Strict turns an
// unbound variable into an error instead of an empty string.
type Expander struct {
	Lookup  func(name string) (string, bool)
	Capture func(cmd string) (string, error)
	Home    string
	Strict  bool
}

// Tokens expands every word token and returns a new slice. Operator
// tokens pass through untouched. Each expanded word collapses to a
// single quoted fragment, so a second pass is a no-op and the result
// never splits into further words.
func (e Expander) Tokens(toks []token.Token) ([]token.Token, error) {
	out := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == token.Op {
			out = append(out, t)
			continue
		}
		text, err := e.word(t)
		if err != nil {
			return nil, err
		}
		out = append(out, token.Token{
			Kind:        token.Word,
			Frags:       []token.Fragment{{Text: text, Quote: token.SingleQuoted}},
			SpaceBefore: t.SpaceBefore,
		})
	}
	return out, nil
}

func (e Expander) word(t token.Token) (string, error) {
	var sb strings.Builder
	for i, f := range t.Frags {
		switch f.Quote {
		case token.SingleQuoted:
			sb.WriteString(f.Text)
		case token.DoubleQuoted:
			s, err := e.text(f.Text, true)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		default:
			s, err := e.text(f.Text, false)
			if err != nil {
				return "", err
			}
			if i == 0 {
				s = e.tilde(s)
			}
			sb.WriteString(s)
		}
	}
	return sb.String(), nil
}

// tilde rewrites a leading `~` that stands alone or precedes a slash.
func (e Expander) tilde(s string) string {
	if e.Home == "" || !strings.HasPrefix(s, "~") {
		return s
	}
	if s == "~" {
		return e.Home
	}
	if s[1] == '/' {
		return e.Home + s[1:]
	}
	return s
}

// text resolves $name, ${name}, $(...) and backtick spans in one
// fragment. Inside double quotes the \$ \` \\ escapes turn into their
// literal character; everywhere else a lone $ with no name after it
// stays a dollar sign.
func (e Expander) text(s string, dquote bool) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if dquote && c == '\\' && i+1 < len(s) {
			switch n := s[i+1]; n {
			case '$', '`', '\\':
				sb.WriteByte(n)
				i += 2
				continue
			}
		}
		switch {
		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				sb.WriteString(s[i:])
				return sb.String(), nil
			}
			val, err := e.variable(s[i+2 : i+2+end])
			if err != nil {
				return "", err
			}
			sb.WriteString(val)
			i += end + 3

		case c == '$' && i+1 < len(s) && s[i+1] == '(':
			span, err := parenSpan(s[i+1:])
			if err != nil {
				return "", err
			}
			out, err := e.capture(span[1 : len(span)-1])
			if err != nil {
				return "", err
			}
			sb.WriteString(out)
			i += 1 + len(span)

		case c == '$':
			name := identPrefix(s[i+1:])
			if name == "" {
				sb.WriteByte('$')
				i++
				continue
			}
			val, err := e.variable(name)
			if err != nil {
				return "", err
			}
			sb.WriteString(val)
			i += 1 + len(name)

		case c == '`':
			end := strings.IndexByte(s[i+1:], '`')
			if end < 0 {
				sb.WriteString(s[i:])
				return sb.String(), nil
			}
			out, err := e.capture(s[i+1 : i+1+end])
			if err != nil {
				return "", err
			}
			sb.WriteString(out)
			i += end + 2

		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

func (e Expander) variable(name string) (string, error) {
	if e.Lookup != nil {
		if val, ok := e.Lookup(name); ok {
			return val, nil
		}
	}
	if e.Strict {
		return "", fmt.Errorf("%w: %s", ErrUndefinedVariable, name)
	}
	return "", nil
}

// capture runs a substituted command line and trims exactly one
// trailing newline from its output.
func (e Expander) capture(cmd string) (string, error) {
	if e.Capture == nil {
		return "", nil
	}
	out, err := e.Capture(cmd)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(out, "\n"), nil
}

// parenSpan returns the balanced `(...)` prefix of s, quotes skipped.
func parenSpan(s string) (string, error) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i+1], nil
			}
		case '\'', '"':
			q := s[i]
			end := strings.IndexByte(s[i+1:], q)
			if end < 0 {
				return "", token.ErrUnterminatedQuote
			}
			i += end + 1
		}
	}
	return "", token.ErrUnterminatedSubstitution
}

func identPrefix(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			continue
		}
		if c >= '0' && c <= '9' && i > 0 {
			continue
		}
		return s[:i]
	}
	return s
}
