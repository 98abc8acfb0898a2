// Package core ties the interpreter together: one Engine owns the
// session, the classifier, the evaluator bridge, and the executor,
// and routes every input line through them.
package core

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/Charles-JpEG/pysh/builtins"
	"github.com/Charles-JpEG/pysh/core/classify"
	"github.com/Charles-JpEG/pysh/core/config"
	"github.com/Charles-JpEG/pysh/core/expand"
	"github.com/Charles-JpEG/pysh/core/plan"
	"github.com/Charles-JpEG/pysh/core/script"
	"github.com/Charles-JpEG/pysh/core/session"
	"github.com/Charles-JpEG/pysh/core/shellexec"
	"github.com/Charles-JpEG/pysh/core/token"
)

// ExecutionResult is what one raw input line produced.
type ExecutionResult struct {
	// ExitCode of the last chunk the line triggered.
	ExitCode int
	// Displays holds interactive value echoes, one per chunk that
	// evaluated to a non-None value.
	Displays []string
	// Notices are finished background job lines, reaped before the
	// statement ran.
	Notices []string
	// ExitRequested is set once the exit builtin has run; the
	// front-end stops after showing this result.
	ExitRequested bool
	// ExitStatus is the status requested by exit.
	ExitStatus int
}

// Engine is one interpreter session.
type Engine struct {
	Sess *session.Session
	Cfg  *config.Configuration
	Log  *log.Logger

	classifier *classify.Classifier
	bridge     *script.Bridge
	exec       *shellexec.Executor

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewEngine builds a session from the configuration with the standard
// streams attached.
func NewEngine(cfg *config.Configuration, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	sess := session.New(os.Environ(), cfg.ProtectedCommands)
	sess.TabWidth = cfg.TabWidth
	sess.UndefinedVars = cfg.UndefinedPolicy()

	e := &Engine{
		Sess:   sess,
		Cfg:    cfg,
		Log:    logger,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	e.bridge = script.NewBridge(sess, e.dispatch, e.capture)
	e.classifier = classify.New(sess, e.bridge.Parses)
	e.exec = shellexec.NewExecutor(sess, afero.NewOsFs(), logger)
	e.exec.Script = e.runScriptStage
	builtins.Install(e.exec)
	return e
}

// SetStreams rebinds the engine's standard streams, for tests and for
// embedding.
func (e *Engine) SetStreams(stdin io.Reader, stdout, stderr io.Writer) {
	e.stdin = stdin
	e.stdout = stdout
	e.stderr = stderr
}

// Pending reports whether a block is still accumulating, so the
// front-end can switch to a continuation prompt.
func (e *Engine) Pending() bool { return e.classifier.Pending() }

// Interrupt drops any partial block, for Ctrl-C at the prompt.
func (e *Engine) Interrupt() { e.classifier.Reset() }

// Interpret routes one raw input line and runs whatever it completes.
// Errors are reported on the engine's stderr; the session survives
// them.
func (e *Engine) Interpret(line string) ExecutionResult {
	res := ExecutionResult{Notices: e.exec.Jobs.Reap()}
	if strings.TrimSpace(line) != "" {
		e.Sess.History = append(e.Sess.History, line)
	}

	chunks, err := e.classifier.Feed(line)
	if err != nil {
		fmt.Fprintf(e.stderr, "pysh: %v\n", err)
		res.ExitCode = 2
		return res
	}
	for _, chunk := range chunks {
		e.runChunk(chunk, &res)
	}
	if done, status := e.exec.ExitRequested(); done {
		res.ExitRequested = true
		res.ExitStatus = status
	}
	return res
}

// Flush force-closes an open block, as when the user sends EOF.
func (e *Engine) Flush() ExecutionResult {
	var res ExecutionResult
	for _, chunk := range e.classifier.Flush() {
		e.runChunk(chunk, &res)
	}
	if done, status := e.exec.ExitRequested(); done {
		res.ExitRequested = true
		res.ExitStatus = status
	}
	return res
}

func (e *Engine) runChunk(chunk classify.Result, res *ExecutionResult) {
	if chunk.Kind == classify.Script {
		e.Log.Debug("script chunk", "text", chunk.Text)
		display, err := e.bridge.Exec(chunk.Text, e.stdout, e.stderr)
		if err != nil {
			fmt.Fprintln(e.stderr, script.Detail(err))
			res.ExitCode = 1
			return
		}
		if display != "" {
			res.Displays = append(res.Displays, display)
		}
		res.ExitCode = 0
		return
	}
	e.Log.Debug("shell chunk", "text", chunk.Text)
	res.ExitCode = e.shellRun(chunk.Text, e.stdin, e.stdout, e.stderr)
}

// shellRun takes a raw command line through expansion, graph
// building, and execution.
func (e *Engine) shellRun(line string, stdin io.Reader, stdout, stderr io.Writer) int {
	toks, err := token.Split(line)
	if err != nil {
		fmt.Fprintf(stderr, "pysh: %v\n", err)
		return 2
	}
	expanded, err := e.expander().Tokens(toks)
	if err != nil {
		fmt.Fprintf(stderr, "pysh: %v\n", err)
		return 1
	}
	seq, err := plan.Build(expanded)
	if err != nil {
		fmt.Fprintf(stderr, "pysh: %v\n", err)
		return 2
	}
	e.markScriptStages(seq)
	return e.exec.Run(seq, stdin, stdout, stderr)
}

// markScriptStages turns pipeline stages that read as code into
// inline evaluator stages, so `f() | grep x` streams the function's
// output into grep.
func (e *Engine) markScriptStages(seq *plan.Sequence) {
	for _, entry := range seq.Entries {
		if len(entry.Pipeline.Stages) < 2 {
			continue
		}
		for _, st := range entry.Pipeline.Stages {
			if st.Script || len(st.Args) == 0 {
				continue
			}
			text := strings.Join(st.Args, " ")
			if e.classifier.LineKind(text) == classify.Script {
				st.Script = true
				st.Raw = text
			}
		}
	}
}

func (e *Engine) expander() expand.Expander {
	return expand.Expander{
		Lookup:  e.Sess.Lookup,
		Capture: e.capture,
		Home:    e.Sess.Getenv("HOME"),
		Strict:  e.Sess.UndefinedVars == session.UndefinedError,
	}
}

// dispatch is the sh() callback: one command line with the caller's
// streams.
func (e *Engine) dispatch(cmd string, stdout, stderr io.Writer) (int, error) {
	return e.shellRun(cmd, e.stdin, stdout, stderr), nil
}

// capture runs a command line for substitution and returns whatever
// it wrote to stdout, even on failure.
func (e *Engine) capture(cmd string) (string, error) {
	var out bytes.Buffer
	e.shellRun(cmd, e.stdin, &out, e.stderr)
	return out.String(), nil
}

// runScriptStage adapts the bridge for inline pipeline stages: the
// chunk's display value streams to stdout like command output.
func (e *Engine) runScriptStage(chunk string, stdout, stderr io.Writer) (int, error) {
	display, err := e.bridge.Exec(chunk, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, script.Detail(err))
		return 1, nil
	}
	if display != "" {
		fmt.Fprintln(stdout, display)
	}
	return 0, nil
}

// RunScript interprets a whole source, batch style: blank lines
// inside a block do not close it when a deeper line follows, matching
// how files are written rather than typed.
func (e *Engine) RunScript(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 1, err
	}

	code := 0
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if e.classifier.Pending() && strings.TrimSpace(line) == "" {
			if next, ok := nextNonBlank(lines, i+1); ok && e.classifier.Continues(next) {
				continue
			}
		}
		res := e.Interpret(line)
		code = res.ExitCode
		for _, d := range res.Displays {
			fmt.Fprintln(e.stdout, d)
		}
		if res.ExitRequested {
			return res.ExitStatus, nil
		}
	}
	res := e.Flush()
	if res.ExitRequested {
		return res.ExitStatus, nil
	}
	if len(res.Displays) > 0 {
		for _, d := range res.Displays {
			fmt.Fprintln(e.stdout, d)
		}
	}
	if res.ExitCode != 0 {
		code = res.ExitCode
	}
	return code, nil
}

func nextNonBlank(lines []string, from int) (string, bool) {
	for _, line := range lines[from:] {
		if strings.TrimSpace(line) != "" {
			return line, true
		}
	}
	return "", false
}
