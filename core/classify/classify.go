// Package classify routes input lines between the shell path and the
// script path and accumulates multi-line blocks.
package classify

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Charles-JpEG/pysh/core/session"
	"github.com/Charles-JpEG/pysh/core/token"
)

// ErrIndentation is reported for a block body line that does not sit
// on a whole multiple of the block's indent unit.
var ErrIndentation = errors.New("inconsistent indentation")

// Kind says which path a chunk takes.
type Kind int

const (
	Shell Kind = iota
	Script
)

func (k Kind) String() string {
	if k == Script {
		return "script"
	}
	return "shell"
}

// Result is one routed chunk: a raw line for the shell path or a
// complete (possibly multi-line) chunk for the evaluator.
type Result struct {
	Kind Kind
	Text string
}

var blockKeywords = map[string]bool{
	"def": true, "if": true, "elif": true, "else": true,
	"for": true, "while": true, "try": true, "except": true,
	"finally": true, "with": true, "class": true,
}

var continueKeywords = map[string]bool{
	"else": true, "elif": true, "except": true, "finally": true,
}

var scriptKeywords = map[string]bool{
	"return": true, "pass": true, "break": true, "continue": true,
	"lambda": true, "not": true, "load": true, "assert": true,
	"raise": true, "del": true, "global": true, "import": true,
	"from": true, "print": true,
}

// Classifier decides, line by line, whether input is a command or
// code. A block-opening header switches it into buffering mode until
// the block closes; the buffered chunk is released as one script
// result. Parse is the evaluator's syntax probe.
type Classifier struct {
	sess  *session.Session
	parse func(src string) bool

	buf          []string
	headerIndent int
	locals       map[string]bool
}

func New(sess *session.Session, parse func(string) bool) *Classifier {
	return &Classifier{sess: sess, parse: parse}
}

// Pending reports whether a block is still being accumulated, so the
// front-end can show a continuation prompt.
func (c *Classifier) Pending() bool { return c.buf != nil }

// Reset drops any partial block, for interrupt handling.
func (c *Classifier) Reset() { c.buf = nil; c.locals = nil }

// Feed routes one raw line. It returns zero or more results: none
// while a block is accumulating, one for a standalone line, and
// possibly two when a line both closes a block and starts something
// new.
func (c *Classifier) Feed(line string) ([]Result, error) {
	if c.buf != nil {
		return c.feedBlock(line)
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, nil
	}
	if isBlockHeader(trimmed) {
		c.buf = []string{line}
		c.headerIndent = c.indentOf(line)
		c.locals = map[string]bool{}
		c.collectLocals(trimmed)
		return nil, nil
	}
	return []Result{{Kind: c.classifyLine(line), Text: line}}, nil
}

// LineKind classifies one line without feeding it, for callers that
// route pipeline stages.
func (c *Classifier) LineKind(line string) Kind {
	return c.classifyLine(line)
}

// Continues reports whether the line would extend the open block.
// Batch readers use it to look past interior blank lines.
func (c *Classifier) Continues(line string) bool {
	if c.buf == nil {
		return false
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	width := c.indentOf(line)
	if width > c.headerIndent {
		return true
	}
	return width == c.headerIndent && isContinuationHeader(trimmed)
}

// Flush force-closes an open block, as at end of input.
func (c *Classifier) Flush() []Result {
	if c.buf == nil {
		return nil
	}
	return c.release()
}

func (c *Classifier) feedBlock(line string) ([]Result, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		// A blank line ends the block right away.
		return c.release(), nil
	}

	width := c.indentOf(line)
	switch {
	case width > c.headerIndent:
		rel := width - c.headerIndent
		unit := c.sess.IndentUnit
		if unit == 0 {
			unit = rel
			c.sess.IndentUnit = rel
		}
		if rel%unit != 0 {
			c.Reset()
			return nil, ErrIndentation
		}
		c.buf = append(c.buf, c.rewriteBody(line, trimmed))
		c.collectLocals(trimmed)
		return nil, nil

	case width == c.headerIndent && isContinuationHeader(trimmed):
		c.buf = append(c.buf, line)
		c.collectLocals(trimmed)
		return nil, nil

	default:
		// At or above the header indent: the block is over and the
		// line itself still needs routing.
		results := c.release()
		more, err := c.Feed(line)
		return append(results, more...), err
	}
}

func (c *Classifier) release() []Result {
	chunk := strings.Join(c.buf, "\n")
	c.buf = nil
	c.locals = nil
	return []Result{{Kind: Script, Text: chunk}}
}

// classifyLine decides a standalone line. A line is script when the
// evaluator can parse it, it carries no unquoted shell operator, and
// its shape is unmistakably code: an assignment, a keyword statement,
// a non-identifier expression, or a leading name that is actually
// bound. Protected command names always go to the shell here.
func (c *Classifier) classifyLine(line string) Kind {
	trimmed := strings.TrimSpace(line)
	lead, isIdent := leadingWord(trimmed)
	if isIdent && c.sess.IsProtected(lead) && !hasAssign(trimmed) {
		// A protected name wins at top level unless the line rebinds
		// something, as in `ls = 5`.
		return Shell
	}
	if token.HasOperator(line) || !c.parse(trimmed) {
		return Shell
	}
	if !isIdent {
		return Script
	}
	if blockKeywords[lead] || scriptKeywords[lead] {
		return Script
	}
	if hasAssign(trimmed) {
		return Script
	}
	if c.sess.Bound(lead) {
		return Script
	}
	return Shell
}

// rewriteBody keeps code lines as they are and wraps command lines in
// a call to the shell dispatch helper, preserving indentation. A body
// line that is just a protected name defers to runtime dispatch, so a
// later rebinding of the name wins over the command.
func (c *Classifier) rewriteBody(line, trimmed string) string {
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	if lead, isIdent := leadingWord(trimmed); isIdent && trimmed == lead && c.sess.IsProtected(lead) {
		return indent + `_pysh_auto(` + strconv.Quote(lead) + `)`
	}
	if c.bodyIsScript(trimmed) {
		return line
	}
	return indent + `sh(` + strconv.Quote(trimmed) + `)`
}

func (c *Classifier) bodyIsScript(trimmed string) bool {
	if isBlockHeader(trimmed) || isContinuationHeader(trimmed) {
		return true
	}
	if token.HasOperator(trimmed) || !c.parse(trimmed) {
		return false
	}
	lead, isIdent := leadingWord(trimmed)
	if !isIdent {
		return true
	}
	if c.sess.IsProtected(lead) {
		return false
	}
	if blockKeywords[lead] || scriptKeywords[lead] {
		return true
	}
	if hasAssign(trimmed) {
		return true
	}
	return c.locals[lead] || c.sess.Bound(lead)
}

// collectLocals records names the buffered chunk itself binds, so
// later body lines that lead with them classify as code.
func (c *Classifier) collectLocals(trimmed string) {
	fields := strings.Fields(trimmed)
	for i, f := range fields {
		switch f {
		case "for":
			for _, target := range strings.FieldsFunc(
				strings.Join(collectUntil(fields[i+1:], "in"), " "),
				func(r rune) bool { return r == ',' || r == '(' || r == ')' || r == ' ' },
			) {
				if isIdentifier(target) {
					c.locals[target] = true
				}
			}
		case "def":
			if i+1 < len(fields) {
				name, params := splitDef(fields[i+1:])
				if isIdentifier(name) {
					c.locals[name] = true
				}
				for _, p := range params {
					c.locals[p] = true
				}
			}
		case "as":
			if i+1 < len(fields) {
				name := strings.TrimSuffix(fields[i+1], ":")
				if isIdentifier(name) {
					c.locals[name] = true
				}
			}
		}
	}
	if lead, isIdent := leadingWord(trimmed); isIdent && hasAssign(trimmed) {
		c.locals[lead] = true
	}
}

func collectUntil(fields []string, stop string) []string {
	for i, f := range fields {
		if f == stop {
			return fields[:i]
		}
	}
	return fields
}

// splitDef pulls the function name and parameter names out of the
// text after the def keyword.
func splitDef(fields []string) (name string, params []string) {
	text := strings.Join(fields, " ")
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return strings.TrimSuffix(text, ":"), nil
	}
	name = text[:open]
	close_ := strings.LastIndexByte(text, ')')
	if close_ < open {
		return name, nil
	}
	for _, p := range strings.Split(text[open+1:close_], ",") {
		p = strings.TrimSpace(p)
		if eq := strings.IndexByte(p, '='); eq >= 0 {
			p = strings.TrimSpace(p[:eq])
		}
		if isIdentifier(p) {
			params = append(params, p)
		}
	}
	return name, params
}

// indentOf measures leading whitespace with tab stops every TabWidth
// columns.
func (c *Classifier) indentOf(line string) int {
	width := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			width++
		case '\t':
			width += c.sess.TabWidth - width%c.sess.TabWidth
		default:
			return width
		}
	}
	return width
}

func isBlockHeader(trimmed string) bool {
	if !strings.HasSuffix(trimmed, ":") {
		return false
	}
	lead, isIdent := leadingWord(trimmed)
	return isIdent && blockKeywords[lead]
}

func isContinuationHeader(trimmed string) bool {
	if !strings.HasSuffix(trimmed, ":") {
		return false
	}
	lead, isIdent := leadingWord(trimmed)
	return isIdent && continueKeywords[lead]
}

// leadingWord returns the longest identifier prefix of the line and
// whether the line starts with one at all.
func leadingWord(trimmed string) (string, bool) {
	i := 0
	for i < len(trimmed) {
		c := trimmed[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			i > 0 && c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	return trimmed[:i], i > 0
}

func isIdentifier(s string) bool {
	lead, ok := leadingWord(s)
	return ok && lead == s
}

// hasAssign reports a top-level = or augmented assignment, ignoring
// comparison operators.
func hasAssign(s string) bool {
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
		case c == '=':
			if i+1 < len(s) && s[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && strings.IndexByte("=!<>", s[i-1]) >= 0 {
				continue
			}
			return true
		}
	}
	return false
}
