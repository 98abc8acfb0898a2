package token

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnterminatedQuote is reported for a quoted span with no closing
// quote. The line is rejected; the engine keeps accepting input.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// ErrUnterminatedSubstitution is reported for a `$(` or backtick span
// with no closing delimiter.
var ErrUnterminatedSubstitution = errors.New("unterminated command substitution")

// operators in longest-match-first order.
var operators = []string{"&&", "||", ">>", ">&", ";", "&", "|", ">", "<"}

// Split breaks a logical line into word and operator tokens.
//
// Splitting happens on unquoted whitespace. Single quotes preserve
// their span verbatim; double quotes allow the escapes \$ \` \\ and \"
// only. An unquoted backslash makes the next character literal, which
// also suppresses its operator or expansion meaning (escaped characters
// are emitted as single-quoted fragments so the expander leaves them
// alone).
func Split(line string) ([]Token, error) {
	var (
		toks       []Token
		frags      []Fragment
		cur        strings.Builder
		spaceSeen  = true // line start counts as a separator
		spaceAtTok = true
	)

	flushFrag := func(q QuoteKind, force bool) {
		if cur.Len() == 0 && !force {
			return
		}
		frags = append(frags, Fragment{Text: cur.String(), Quote: q})
		cur.Reset()
	}
	flushWord := func() {
		flushFrag(Unquoted, false)
		if len(frags) == 0 {
			return
		}
		toks = append(toks, Token{Kind: Word, Frags: frags, SpaceBefore: spaceAtTok})
		frags = nil
		spaceAtTok = false
	}

	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			flushWord()
			spaceSeen = true
			i++

		case c == '\'':
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("%w: %q", ErrUnterminatedQuote, line[i:])
			}
			if spaceSeen && len(frags) == 0 {
				spaceAtTok = true
			}
			spaceSeen = false
			flushFrag(Unquoted, false)
			cur.WriteString(line[i+1 : i+1+end])
			flushFrag(SingleQuoted, true) // '' is a legal empty word
			i += end + 2

		case c == '"':
			if spaceSeen && len(frags) == 0 {
				spaceAtTok = true
			}
			spaceSeen = false
			flushFrag(Unquoted, false)
			text, rest, err := scanDoubleQuoted(line[i+1:])
			if err != nil {
				return nil, err
			}
			cur.WriteString(text)
			flushFrag(DoubleQuoted, true)
			i = len(line) - len(rest)

		case c == '\\' && i+1 < len(line):
			if spaceSeen && len(frags) == 0 {
				spaceAtTok = true
			}
			spaceSeen = false
			flushFrag(Unquoted, false)
			cur.WriteByte(line[i+1])
			flushFrag(SingleQuoted, false)
			i += 2

		case c == '$' && i+1 < len(line) && line[i+1] == '(':
			span, err := scanParenSpan(line[i:])
			if err != nil {
				return nil, err
			}
			if spaceSeen && len(frags) == 0 {
				spaceAtTok = true
			}
			spaceSeen = false
			cur.WriteString(span)
			i += len(span)

		case c == '`':
			end := strings.IndexByte(line[i+1:], '`')
			if end < 0 {
				return nil, fmt.Errorf("%w: %q", ErrUnterminatedSubstitution, line[i:])
			}
			if spaceSeen && len(frags) == 0 {
				spaceAtTok = true
			}
			spaceSeen = false
			cur.WriteString(line[i : i+end+2])
			i += end + 2

		default:
			if op := matchOperator(line[i:]); op != "" {
				flushWord()
				toks = append(toks, Token{Kind: Op, Op: op, SpaceBefore: spaceSeen})
				spaceSeen = false
				spaceAtTok = false
				i += len(op)
				continue
			}
			if spaceSeen && len(frags) == 0 {
				spaceAtTok = true
			}
			spaceSeen = false
			cur.WriteByte(c)
			i++
		}
	}
	flushWord()

	return toks, nil
}

// scanDoubleQuoted consumes a double-quoted span after the opening
// quote, returning the span text and the remainder of the line starting
// after the closing quote. Escaped quotes are resolved here; the \$ \`
// and \\ escapes are kept verbatim so the expander can tell an escaped
// dollar from a live one.
func scanDoubleQuoted(s string) (text, rest string, err error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			return sb.String(), s[i+1:], nil
		case '\\':
			if i+1 < len(s) {
				switch n := s[i+1]; n {
				case '"':
					sb.WriteByte('"')
					i++
					continue
				case '$', '`', '\\':
					sb.WriteByte('\\')
					sb.WriteByte(n)
					i++
					continue
				}
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnterminatedQuote, `"`+s)
}

// scanParenSpan consumes a `$(...)` span with balanced nesting,
// skipping quoted stretches inside, and returns it verbatim. The span
// is kept whole so pipes and spaces inside it do not split the word.
func scanParenSpan(s string) (string, error) {
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
				return "", fmt.Errorf("%w: %q", ErrUnterminatedQuote, s[i:])
			}
			i += end + 1
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnterminatedSubstitution, s)
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

// HasOperator reports whether any unquoted shell operator occurs in the
// line. Tokenization errors count as "has operator" so callers fall
// back to the shell path, which reports the real problem.
func HasOperator(line string) bool {
	toks, err := Split(line)
	if err != nil {
		return true
	}
	for _, t := range toks {
		if t.Kind == Op {
			return true
		}
	}
	return false
}
