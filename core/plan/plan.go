// Package plan turns an expanded token stream into a sequence of
// pipelines joined by `;`, `&&`, `||` and `&`.
package plan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Charles-JpEG/pysh/core/token"
)

// ErrBadRedirect is reported for a redirection with a missing or
// unusable target.
var ErrBadRedirect = errors.New("bad redirect")

// ErrTrailingBackground is reported when tokens follow a background
// marker; `&` ends sequence parsing for a statement.
var ErrTrailingBackground = errors.New("unexpected token after '&'")

// RedirMode is the kind of a redirection.
type RedirMode int

const (
	RedirIn RedirMode = iota
	RedirOut
	RedirAppend
	RedirDup
)

func (m RedirMode) String() string {
	switch m {
	case RedirIn:
		return "<"
	case RedirOut:
		return ">"
	case RedirAppend:
		return ">>"
	case RedirDup:
		return ">&"
	}
	return "?"
}

// Redirect binds one descriptor of a command stage to a file target or
// to another descriptor.
type Redirect struct {
	Fd     int    // affected descriptor
	Mode   RedirMode
	Target string // file path for In/Out/Append
	DupFd  int    // source descriptor for Dup
}

// CommandSpec is one stage of a pipeline: an external program, builtin,
// or an inline script stage run in-process by the evaluator.
type CommandSpec struct {
	Args      []string
	Redirects []Redirect

	// Script marks an inline script stage; Raw holds its source text.
	Script bool
	Raw    string
}

// Pipeline is an ordered list of stages connected by pipes.
type Pipeline struct {
	Stages     []*CommandSpec
	Background bool
}

// Joiner relates a pipeline to the one before it.
type Joiner int

const (
	Seq Joiner = iota // `;` or first pipeline: always runs
	And               // `&&`: runs if the previous exit code is 0
	Or                // `||`: runs if the previous exit code is non-zero
)

func (j Joiner) String() string {
	switch j {
	case And:
		return "&&"
	case Or:
		return "||"
	}
	return ";"
}

// Entry pairs a pipeline with the joiner connecting it to its
// predecessor. Joiners apply strictly left to right, no precedence.
type Entry struct {
	Pipeline *Pipeline
	Joiner   Joiner
}

// Sequence is the command graph for one statement.
type Sequence struct {
	Entries []Entry
}

// Build consumes the token stream left to right, attaching redirections
// to the command they trail and splitting pipelines on joiners.
func Build(toks []token.Token) (*Sequence, error) {
	b := &builder{}
	i := 0
	for i < len(toks) {
		t := toks[i]
		if t.Kind != token.Op {
			b.word(t)
			i++
			continue
		}

		switch t.Op {
		case "|":
			b.pipe()
			i++

		case ";":
			b.terminate(Seq)
			i++

		case "&&":
			b.terminate(And)
			i++

		case "||":
			b.terminate(Or)
			i++

		case "&":
			b.background()
			if i+1 < len(toks) {
				return nil, fmt.Errorf("%w: %q", ErrTrailingBackground, toks[i+1].Text())
			}
			i++

		case "<":
			n, err := b.redirect(RedirIn, 0, toks, i)
			if err != nil {
				return nil, err
			}
			i = n

		case ">", ">>":
			mode := RedirOut
			if t.Op == ">>" {
				mode = RedirAppend
			}
			// `2 > & 1` is an accepted spaced spelling of `2>&1`.
			if mode == RedirOut && i+2 < len(toks) && toks[i+1].IsOp("&") {
				if fd, ok := dupTarget(toks[i+2]); ok {
					b.dup(t, mode, fd)
					i += 3
					continue
				}
			}
			n, err := b.redirect(mode, 1, toks, i)
			if err != nil {
				return nil, err
			}
			i = n

		case ">&":
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("%w: missing descriptor after %q", ErrBadRedirect, t.Op)
			}
			fd, ok := dupTarget(toks[i+1])
			if !ok {
				return nil, fmt.Errorf("%w: %q is not a descriptor", ErrBadRedirect, toks[i+1].Text())
			}
			b.dup(t, RedirOut, fd)
			i += 2

		default:
			return nil, fmt.Errorf("unexpected operator %q", t.Op)
		}
	}
	b.flushAll()
	return &Sequence{Entries: b.entries}, nil
}

type builder struct {
	entries []Entry
	stages  []*CommandSpec
	args    []string
	redirs  []Redirect
	joiner  Joiner
}

func (b *builder) word(t token.Token) {
	b.args = append(b.args, t.Text())
}

// fdPrefix pops a trailing pure-integer argument to use as a redirect
// descriptor. Spaced forms are honored only when allowed (the `>&`
// family); `echo 2 > f` keeps 2 as an argument.
func (b *builder) fdPrefix(def int, spaced bool, opSpaceBefore bool) int {
	if len(b.args) == 0 {
		return def
	}
	if opSpaceBefore && !spaced {
		return def
	}
	last := b.args[len(b.args)-1]
	fd, err := strconv.Atoi(last)
	if err != nil || fd < 0 || fd > 9 {
		return def
	}
	b.args = b.args[:len(b.args)-1]
	return fd
}

func (b *builder) redirect(mode RedirMode, defFd int, toks []token.Token, i int) (int, error) {
	op := toks[i]
	if i+1 >= len(toks) || toks[i+1].Kind == token.Op {
		return 0, fmt.Errorf("%w: missing target after %q", ErrBadRedirect, op.Op)
	}
	target := toks[i+1].Text()
	if target == "" {
		return 0, fmt.Errorf("%w: empty target", ErrBadRedirect)
	}
	fd := b.fdPrefix(defFd, false, op.SpaceBefore)
	b.redirs = append(b.redirs, Redirect{Fd: fd, Mode: mode, Target: target})
	return i + 2, nil
}

func (b *builder) dup(op token.Token, _ RedirMode, dupFd int) {
	fd := b.fdPrefix(1, true, op.SpaceBefore)
	b.redirs = append(b.redirs, Redirect{Fd: fd, Mode: RedirDup, DupFd: dupFd})
}

func dupTarget(t token.Token) (int, bool) {
	if t.Kind == token.Op || t.Quoted() {
		return 0, false
	}
	fd, err := strconv.Atoi(t.Text())
	if err != nil || fd < 0 || fd > 9 {
		return 0, false
	}
	return fd, true
}

// flushStage closes the stage under construction, if any.
func (b *builder) flushStage() {
	if len(b.args) == 0 && len(b.redirs) == 0 {
		return
	}
	b.stages = append(b.stages, &CommandSpec{Args: b.args, Redirects: b.redirs})
	b.args = nil
	b.redirs = nil
}

func (b *builder) pipe() {
	b.flushStage()
}

func (b *builder) flushPipeline(background bool) {
	b.flushStage()
	if len(b.stages) == 0 {
		// Stray operator; the original parser skips these quietly.
		return
	}
	b.entries = append(b.entries, Entry{
		Pipeline: &Pipeline{Stages: b.stages, Background: background},
		Joiner:   b.joiner,
	})
	b.stages = nil
}

func (b *builder) terminate(next Joiner) {
	b.flushPipeline(false)
	b.joiner = next
}

func (b *builder) background() {
	b.flushPipeline(true)
	b.joiner = Seq
}

func (b *builder) flushAll() {
	b.flushPipeline(false)
}

// Format renders the sequence in the debug form used by tests:
// one `CMD` line per stage and one `OP` line per connective.
func (s *Sequence) Format() string {
	var lines []string
	for i, e := range s.Entries {
		if i > 0 {
			lines = append(lines, "OP   "+e.Joiner.String())
		}
		for j, st := range e.Pipeline.Stages {
			if j > 0 {
				lines = append(lines, "OP   |")
			}
			parts := append([]string(nil), st.Args...)
			for _, r := range st.Redirects {
				if r.Mode == RedirDup {
					parts = append(parts, fmt.Sprintf("%d>&%d", r.Fd, r.DupFd))
				} else {
					parts = append(parts, fmt.Sprintf("%d%s%s", r.Fd, r.Mode, r.Target))
				}
			}
			lines = append(lines, "CMD  "+strings.Join(parts, " "))
		}
		if e.Pipeline.Background {
			lines = append(lines, "OP   &")
		}
	}
	if len(lines) == 0 {
		return "<empty>"
	}
	return strings.Join(lines, "\n")
}

// LastRedirects resolves "last one wins" per descriptor, preserving
// the order of first appearance.
func (c *CommandSpec) LastRedirects() []Redirect {
	last := make(map[int]Redirect)
	var order []int
	for _, r := range c.Redirects {
		if _, seen := last[r.Fd]; !seen {
			order = append(order, r.Fd)
		}
		last[r.Fd] = r
	}
	out := make([]Redirect, 0, len(order))
	for _, fd := range order {
		out = append(out, last[fd])
	}
	return out
}
