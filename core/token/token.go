// Package token splits one logical input line into words and shell
// operator tokens, preserving enough quoting context for later
// expansion and classification.
package token

import "strings"

// Kind discriminates word tokens from operator tokens.
type Kind int

const (
	Word Kind = iota
	Op
)

// QuoteKind records the quoting context of a word fragment.
type QuoteKind int

const (
	Unquoted QuoteKind = iota
	SingleQuoted
	DoubleQuoted
)

// Fragment is a run of characters within a word sharing one quoting
// context. Escape sequences have already been applied to Text.
type Fragment struct {
	Text  string
	Quote QuoteKind
}

// Token is a single word or operator.
type Token struct {
	Kind Kind

	// Op holds the operator text for Kind == Op.
	Op string

	// Frags holds the word fragments for Kind == Word.
	Frags []Fragment

	// SpaceBefore reports whether whitespace separated this token from
	// the previous one. Redirection parsing uses it to tell `2>` (fd
	// prefix) from `echo 2 > f` (argument).
	SpaceBefore bool
}

// Text returns the token's literal text with quoting removed.
func (t Token) Text() string {
	if t.Kind == Op {
		return t.Op
	}
	var sb strings.Builder
	for _, f := range t.Frags {
		sb.WriteString(f.Text)
	}
	return sb.String()
}

// Quoted reports whether any part of the token was quoted.
func (t Token) Quoted() bool {
	for _, f := range t.Frags {
		if f.Quote != Unquoted {
			return true
		}
	}
	return false
}

// IsOp reports whether the token is the given operator.
func (t Token) IsOp(op string) bool {
	return t.Kind == Op && t.Op == op
}

// Texts flattens tokens to their literal texts.
func Texts(toks []Token) []string {
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Text())
	}
	return out
}
