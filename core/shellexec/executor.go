// Package shellexec runs command graphs: external programs, builtins,
// and inline script stages wired together with pipes.
package shellexec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/Charles-JpEG/pysh/core/plan"
	"github.com/Charles-JpEG/pysh/core/session"
)

var (
	// ErrCommandNotFound maps to exit code 127.
	ErrCommandNotFound = errors.New("command not found")
	// ErrPermissionDenied maps to exit code 126.
	ErrPermissionDenied = errors.New("permission denied")
)

const (
	codeNotFound   = 127
	codePermission = 126
)

// BuiltinContext is what an in-process command sees.
type BuiltinContext struct {
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Sess   *session.Session
	Fs     afero.Fs
	Exec   *Executor
}

// BuiltinFunc runs an in-process command and returns its exit code.
type BuiltinFunc func(*BuiltinContext) int

// ScriptFunc runs an inline script stage with the given streams.
type ScriptFunc func(chunk string, stdout, stderr io.Writer) (int, error)

// Executor runs pipelines for one session.
type Executor struct {
	Sess     *session.Session
	Fs       afero.Fs
	Jobs     *JobTable
	Builtins map[string]BuiltinFunc
	Script   ScriptFunc
	Log      *log.Logger

	// LookPath resolves external commands; swapped in tests.
	LookPath func(file string) (string, error)

	exitRequested bool
	exitCode      int
}

func NewExecutor(sess *session.Session, fs afero.Fs, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Executor{
		Sess:     sess,
		Fs:       fs,
		Jobs:     NewJobTable(),
		Builtins: map[string]BuiltinFunc{},
		Log:      logger,
		LookPath: exec.LookPath,
	}
}

// RequestExit records that the session should end once the current
// statement finishes. The exit builtin calls this; the front-end
// checks ExitRequested after each statement.
func (e *Executor) RequestExit(code int) {
	e.exitRequested = true
	e.exitCode = code
}

func (e *Executor) ExitRequested() (bool, int) {
	return e.exitRequested, e.exitCode
}

// Run executes one statement's command graph. Joiners apply left to
// right against the last exit code. Errors from individual pipelines
// are reported on stderr and folded into the exit code; Run itself
// only fails on internal problems.
func (e *Executor) Run(seq *plan.Sequence, stdin io.Reader, stdout, stderr io.Writer) int {
	code := 0
	for i, entry := range seq.Entries {
		if i > 0 {
			if entry.Joiner == plan.And && code != 0 {
				continue
			}
			if entry.Joiner == plan.Or && code == 0 {
				continue
			}
		}
		if entry.Pipeline.Background {
			e.background(entry.Pipeline, stdout, stderr)
			code = 0
			continue
		}
		code = e.runPipeline(entry.Pipeline, e.Sess.Environ(), stdin, stdout, stderr)
	}
	return code
}

// stage is one pipeline slot with its resolved streams.
type stage struct {
	spec    *plan.CommandSpec
	path    string
	builtin BuiltinFunc
	io      stdio
	rc      *os.File // pipe read end feeding this stage
	wc      *os.File // pipe write end this stage writes
	files   []io.Closer
	code    int
}

func (e *Executor) runPipeline(p *plan.Pipeline, env []string, stdin io.Reader, stdout, stderr io.Writer) int {
	stages, err := e.preflight(p, stderr)
	if err != nil {
		return exitCodeFor(err)
	}
	code, err := e.startAndWait(stages, env, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "pysh: %v\n", err)
		return exitCodeFor(err)
	}
	return code
}

// preflight resolves every stage before anything starts, so a missing
// command in any slot stops the whole pipeline up front.
func (e *Executor) preflight(p *plan.Pipeline, stderr io.Writer) ([]*stage, error) {
	stages := make([]*stage, 0, len(p.Stages))
	for _, spec := range p.Stages {
		st := &stage{spec: spec}
		switch {
		case spec.Script:
		case len(spec.Args) == 0:
			return nil, fmt.Errorf("empty command")
		default:
			name := spec.Args[0]
			if fn, ok := e.Builtins[name]; ok {
				st.builtin = fn
				break
			}
			path, err := e.LookPath(name)
			if err != nil {
				if errors.Is(err, os.ErrPermission) {
					fmt.Fprintf(stderr, "pysh: %s: permission denied\n", name)
					return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, name)
				}
				fmt.Fprintf(stderr, "pysh: %s: command not found\n", name)
				return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, name)
			}
			st.path = path
		}
		stages = append(stages, st)
	}
	return stages, nil
}

func (e *Executor) startAndWait(stages []*stage, env []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	n := len(stages)
	var (
		cmds = make([]*exec.Cmd, n)
		wg   sync.WaitGroup
	)
	defer func() {
		for _, st := range stages {
			for _, f := range st.files {
				f.Close()
			}
		}
	}()

	// Wire the streams first so an open error aborts before any
	// process starts.
	var prevRead *os.File
	for i, st := range stages {
		base := stdio{in: stdin, out: stdout, err: stderr}
		if prevRead != nil {
			base.in = prevRead
			st.rc = prevRead
			prevRead = nil
		}
		if i < n-1 {
			pr, pw, err := os.Pipe()
			if err != nil {
				closeWired(stages[:i+1])
				return 1, err
			}
			base.out = pw
			st.wc = pw
			prevRead = pr
		}
		resolved, files, err := applyRedirects(e.Fs, base, st.spec.Redirects)
		if err != nil {
			if prevRead != nil {
				prevRead.Close()
			}
			closeWired(stages[:i+1])
			return 1, err
		}
		st.io = resolved
		st.files = files
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)
	done := make(chan struct{})
	defer close(done)

	for i, st := range stages {
		switch {
		case st.path != "":
			cmd := exec.Command(st.path, st.spec.Args[1:]...)
			cmd.Stdin = st.io.in
			cmd.Stdout = st.io.out
			cmd.Stderr = st.io.err
			cmd.Env = env
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
			e.Log.Debug("starting command", "path", st.path, "args", st.spec.Args)
			if err := cmd.Start(); err != nil {
				st.closePipes()
				return 1, err
			}
			cmds[i] = cmd
			// The child holds its own copies now.
			st.closePipes()

		default:
			st := st
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer st.closePipes()
				st.code = e.runInProcess(st)
			}()
		}
	}

	go func() {
		select {
		case <-sigc:
			for _, cmd := range cmds {
				if cmd != nil && cmd.Process != nil {
					syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
				}
			}
		case <-done:
		}
	}()

	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}
		stages[i].code = waitCode(cmd)
	}
	wg.Wait()

	return stages[n-1].code, nil
}

func (e *Executor) runInProcess(st *stage) int {
	if st.spec.Script {
		if e.Script == nil {
			fmt.Fprintln(st.io.err, "pysh: no evaluator attached")
			return 1
		}
		code, err := e.Script(st.spec.Raw, st.io.out, st.io.err)
		if err != nil {
			fmt.Fprintln(st.io.err, err)
			return 1
		}
		return code
	}
	return st.builtin(&BuiltinContext{
		Args:   st.spec.Args,
		Stdin:  st.io.in,
		Stdout: st.io.out,
		Stderr: st.io.err,
		Sess:   e.Sess,
		Fs:     e.Fs,
		Exec:   e,
	})
}

// closeWired releases the pipe ends of every stage wired so far, so an
// abort mid-wiring leaks nothing.
func closeWired(stages []*stage) {
	for _, st := range stages {
		st.closePipes()
	}
}

func (st *stage) closePipes() {
	if st.rc != nil {
		st.rc.Close()
		st.rc = nil
	}
	if st.wc != nil {
		st.wc.Close()
		st.wc = nil
	}
}

// background launches the pipeline detached and registers it in the
// job table. Its processes sit in their own groups, so terminal
// interrupts do not reach them. Preflight and the environment snapshot
// happen here, before the goroutine starts: the session is owned by
// the statement loop and must not be read while later statements run.
func (e *Executor) background(p *plan.Pipeline, stdout, stderr io.Writer) {
	job := e.Jobs.Add(commandText(p))
	fmt.Fprintf(stdout, "[%d] started\n", job.ID)
	e.Log.Debug("background job", "id", job.ID, "command", job.Command)

	stages, err := e.preflight(p, stderr)
	if err != nil {
		job.finish(exitCodeFor(err))
		return
	}
	env := e.Sess.Environ()
	go func() {
		code, err := e.startAndWait(stages, env, eofReader{}, os.Stdout, os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pysh: %v\n", err)
			code = 1
		}
		job.finish(code)
	}()
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

func commandText(p *plan.Pipeline) string {
	text := ""
	for i, st := range p.Stages {
		if i > 0 {
			text += " | "
		}
		if st.Script {
			text += st.Raw
			continue
		}
		for j, a := range st.Args {
			if j > 0 {
				text += " "
			}
			text += a
		}
	}
	return text
}

func waitCode(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return ee.ExitCode()
	}
	return 1
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, ErrCommandNotFound):
		return codeNotFound
	case errors.Is(err, ErrPermissionDenied):
		return codePermission
	default:
		return 1
	}
}
