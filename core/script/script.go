// Package script is the boundary to the embedded Starlark evaluator.
// All chunks execute against one session-owned namespace, so commands
// and code observe each other's bindings immediately.
package script

import (
	"errors"
	"fmt"
	"io"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/Charles-JpEG/pysh/core/session"
)

// fileOpts enables the statement forms an interactive session needs:
// while loops, top-level if/for, and rebinding of globals.
var fileOpts = syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

const (
	stdoutKey = "pysh.stdout"
	stderrKey = "pysh.stderr"
)

// ShellFunc runs one command line on the shell path with the given
// streams and reports its exit code.
type ShellFunc func(cmd string, stdout, stderr io.Writer) (int, error)

// CaptureFunc runs one command line and returns its standard output.
type CaptureFunc func(cmd string) (string, error)

// Bridge executes script chunks against the session namespace. Shell
// and Capture call back into the interpreter so script code can reach
// the command path (the sh and sh_output helpers).
type Bridge struct {
	sess    *session.Session
	shell   ShellFunc
	capture CaptureFunc
}

// NewBridge wires the evaluator to a session and installs the helper
// builtins into its namespace.
func NewBridge(sess *session.Session, shell ShellFunc, capture CaptureFunc) *Bridge {
	b := &Bridge{sess: sess, shell: shell, capture: capture}
	sess.Globals["sh"] = starlark.NewBuiltin("sh", b.shBuiltin)
	sess.Globals["sh_output"] = starlark.NewBuiltin("sh_output", b.shOutputBuiltin)
	sess.Globals["environ"] = starlark.NewBuiltin("environ", b.environBuiltin)
	sess.Globals["_pysh_auto"] = starlark.NewBuiltin("_pysh_auto", b.autoBuiltin)
	return b
}

// Parses reports whether the evaluator accepts the source text. The
// classifier uses this as its syntax probe.
func (b *Bridge) Parses(src string) bool {
	_, err := fileOpts.Parse("<probe>", src, 0)
	return err == nil
}

// Exec runs one chunk. A chunk that is a single expression evaluates
// to a display string in the interactive style (empty for None);
// anything else executes for effect. New top-level bindings land in
// the session namespace.
//
// A chunk consisting of a single function definition compiles against
// the namespace as predeclared names, so the function's free names
// are looked up at call time. Rebinding a name after the definition
// changes what the function sees, matching how a live interpreter
// session behaves.
func (b *Bridge) Exec(chunk string, stdout, stderr io.Writer) (string, error) {
	f, err := fileOpts.Parse("<input>", chunk, 0)
	if err != nil {
		return "", err
	}
	thread := b.thread(stdout, stderr)

	if len(f.Stmts) == 1 {
		switch f.Stmts[0].(type) {
		case *syntax.ExprStmt:
			return b.evalExpr(thread, chunk)
		case *syntax.DefStmt:
			return "", b.execDef(thread, f, chunk)
		}
	}
	return "", starlark.ExecREPLChunk(f, thread, b.sess.Globals)
}

func (b *Bridge) evalExpr(thread *starlark.Thread, chunk string) (string, error) {
	v, err := starlark.EvalOptions(&fileOpts, thread, "<input>", chunk, b.sess.Globals)
	if err != nil {
		return "", err
	}
	if v == starlark.None {
		return "", nil
	}
	return v.String(), nil
}

func (b *Bridge) execDef(thread *starlark.Thread, f *syntax.File, chunk string) error {
	b.ensureFreeNames(f)
	has := func(name string) bool {
		_, ok := b.sess.Globals[name]
		return ok
	}
	_, prog, err := starlark.SourceProgramOptions(&fileOpts, "<input>", chunk, has)
	if err != nil {
		return err
	}
	globals, err := prog.Init(thread, b.sess.Globals)
	for name, v := range globals {
		b.sess.Globals[name] = v
	}
	return err
}

// ensureFreeNames seeds a None placeholder for every name the chunk
// references but neither the namespace nor the universe defines.
// Without a binding the compiler would reject the reference; with the
// placeholder the name resolves at call time, so defining it later
// makes the function work.
func (b *Bridge) ensureFreeNames(f *syntax.File) {
	skip := map[*syntax.Ident]bool{}
	note := func(e syntax.Expr) {
		switch e := e.(type) {
		case *syntax.Ident:
			skip[e] = true
		case *syntax.BinaryExpr:
			if id, ok := e.X.(*syntax.Ident); ok {
				skip[id] = true
			}
		}
	}
	syntax.Walk(f, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.DotExpr:
			skip[n.Name] = true
		case *syntax.DefStmt:
			for _, p := range n.Params {
				note(p)
			}
		case *syntax.LambdaExpr:
			for _, p := range n.Params {
				note(p)
			}
		case *syntax.Ident:
			if skip[n] {
				return true
			}
			if _, ok := b.sess.Globals[n.Name]; ok {
				return true
			}
			if _, ok := starlark.Universe[n.Name]; ok {
				return true
			}
			b.sess.Globals[n.Name] = starlark.None
		}
		return true
	})
}

func (b *Bridge) thread(stdout, stderr io.Writer) *starlark.Thread {
	thread := &starlark.Thread{
		Name: "pysh",
		Print: func(t *starlark.Thread, msg string) {
			fmt.Fprintln(threadWriter(t, stdoutKey), msg)
		},
	}
	thread.SetLocal(stdoutKey, stdout)
	thread.SetLocal(stderrKey, stderr)
	return thread
}

func threadWriter(t *starlark.Thread, key string) io.Writer {
	if w, ok := t.Local(key).(io.Writer); ok {
		return w
	}
	return io.Discard
}

// sh(cmd) runs a command line through the shell path with the
// thread's current streams and returns its exit code.
func (b *Bridge) shBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmd string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &cmd); err != nil {
		return nil, err
	}
	if b.shell == nil {
		return nil, errors.New("sh: no shell attached")
	}
	code, err := b.shell(cmd, threadWriter(thread, stdoutKey), threadWriter(thread, stderrKey))
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(code), nil
}

// sh_output(cmd) runs a command line and returns its standard output
// with one trailing newline removed, like command substitution.
func (b *Bridge) shOutputBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmd string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &cmd); err != nil {
		return nil, err
	}
	if b.capture == nil {
		return nil, errors.New("sh_output: no shell attached")
	}
	out, err := b.capture(cmd)
	if err != nil {
		return nil, err
	}
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return starlark.String(out), nil
}

// environ() returns the merged environment as a dict.
func (b *Bridge) environBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	d := starlark.NewDict(0)
	for _, kv := range b.sess.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				if err := d.SetKey(starlark.String(kv[:i]), starlark.String(kv[i+1:])); err != nil {
					return nil, err
				}
				break
			}
		}
	}
	return d, nil
}

// _pysh_auto(name) is the runtime dispatch for a bare name inside a
// block: a live binding wins, otherwise the name runs as a command.
func (b *Bridge) autoBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	if v, ok := b.sess.Globals[name]; ok && v != starlark.None {
		if _, isHelper := v.(*starlark.Builtin); !isHelper {
			return v, nil
		}
	}
	if b.shell == nil {
		return nil, errors.New("_pysh_auto: no shell attached")
	}
	if _, err := b.shell(name, threadWriter(thread, stdoutKey), threadWriter(thread, stderrKey)); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// Detail renders an evaluation error with its backtrace when one is
// available.
func Detail(err error) string {
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		return ee.Backtrace()
	}
	return err.Error()
}
