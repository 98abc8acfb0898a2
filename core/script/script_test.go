package script

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/Charles-JpEG/pysh/core/session"
)

type fakeShell struct {
	cmds []string
	out  string
	code int
}

func (f *fakeShell) run(cmd string, stdout, stderr io.Writer) (int, error) {
	f.cmds = append(f.cmds, cmd)
	if f.out != "" {
		fmt.Fprint(stdout, f.out)
	}
	return f.code, nil
}

func (f *fakeShell) capture(cmd string) (string, error) {
	f.cmds = append(f.cmds, cmd)
	return f.out, nil
}

func newBridge(t *testing.T) (*Bridge, *session.Session, *fakeShell) {
	t.Helper()
	sess := session.New(nil, nil)
	sh := &fakeShell{}
	return NewBridge(sess, sh.run, sh.capture), sess, sh
}

func exec(t *testing.T, b *Bridge, chunk string) (display, stdout string) {
	t.Helper()
	var out bytes.Buffer
	d, err := b.Exec(chunk, &out, io.Discard)
	require.NoError(t, err, chunk)
	return d, out.String()
}

func TestParses(t *testing.T) {
	b, _, _ := newBridge(t)
	assert.True(t, b.Parses("x = 42"))
	assert.True(t, b.Parses("def f():\n    pass"))
	assert.True(t, b.Parses("while x:\n    pass"))
	assert.False(t, b.Parses("ls -l foo"))
	assert.False(t, b.Parses("echo 'unterminated"))
}

func TestAssignAndDisplay(t *testing.T) {
	b, sess, _ := newBridge(t)

	d, _ := exec(t, b, "x = 42")
	assert.Empty(t, d)
	assert.Equal(t, starlark.MakeInt(42), sess.Globals["x"])

	d, _ = exec(t, b, "x")
	assert.Equal(t, "42", d)

	d, _ = exec(t, b, "x + 1")
	assert.Equal(t, "43", d)

	d, _ = exec(t, b, "x = x + 1")
	assert.Empty(t, d)
	d, _ = exec(t, b, "x")
	assert.Equal(t, "43", d)

	// Statements display nothing; None displays nothing.
	d, _ = exec(t, b, "None")
	assert.Empty(t, d)
}

func TestPrintGoesToStdout(t *testing.T) {
	b, _, _ := newBridge(t)
	_, out := exec(t, b, "print('hello')")
	assert.Equal(t, "hello\n", out)
}

func TestFunctionSeesLaterBinding(t *testing.T) {
	b, _, _ := newBridge(t)

	// The function references a name that does not exist yet.
	exec(t, b, "def show_x():\n    print(x)")
	exec(t, b, "x = 42")
	_, out := exec(t, b, "show_x()")
	assert.Equal(t, "42\n", out)
}

func TestFunctionSeesRebinding(t *testing.T) {
	b, _, _ := newBridge(t)

	exec(t, b, "x = 1")
	exec(t, b, "def show_x():\n    print(x)")
	_, out := exec(t, b, "show_x()")
	assert.Equal(t, "1\n", out)

	exec(t, b, "x = 2")
	_, out = exec(t, b, "show_x()")
	assert.Equal(t, "2\n", out)
}

func TestFunctionCallsFunction(t *testing.T) {
	b, _, _ := newBridge(t)

	exec(t, b, "def inner():\n    print('inner')")
	exec(t, b, "def outer():\n    inner()")
	_, out := exec(t, b, "outer()")
	assert.Equal(t, "inner\n", out)

	// Redefining the callee changes what the caller runs.
	exec(t, b, "def inner():\n    print('changed')")
	_, out = exec(t, b, "outer()")
	assert.Equal(t, "changed\n", out)
}

func TestLoopChunk(t *testing.T) {
	b, _, _ := newBridge(t)
	_, out := exec(t, b, "for i in range(3):\n    print(i)")
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestMutateEarlierList(t *testing.T) {
	b, _, _ := newBridge(t)

	exec(t, b, "items = []")
	exec(t, b, "def add(v):\n    items.append(v)")
	exec(t, b, "add(1)")
	exec(t, b, "add(2)")
	d, _ := exec(t, b, "items")
	assert.Equal(t, "[1, 2]", d)
}

func TestShBuiltin(t *testing.T) {
	b, _, sh := newBridge(t)
	sh.out = "from shell\n"

	_, out := exec(t, b, "for i in range(2):\n    sh(\"echo hi\")")
	assert.Equal(t, []string{"echo hi", "echo hi"}, sh.cmds)
	assert.Equal(t, "from shell\nfrom shell\n", out)

	sh.cmds = nil
	sh.code = 3
	d, _ := exec(t, b, `sh("false")`)
	assert.Equal(t, "3", d)
}

func TestShOutputBuiltin(t *testing.T) {
	b, _, sh := newBridge(t)
	sh.out = "value\n"

	d, _ := exec(t, b, `sh_output("cat f")`)
	assert.Equal(t, `"value"`, d)
	assert.Equal(t, []string{"cat f"}, sh.cmds)
}

func TestEnvironBuiltin(t *testing.T) {
	b, sess, _ := newBridge(t)
	sess.Setenv("MARKER", "yes")

	_, out := exec(t, b, `print(environ()["MARKER"])`)
	assert.Equal(t, "yes\n", out)
}

func TestAutoDispatch(t *testing.T) {
	b, sess, sh := newBridge(t)

	// Unbound name runs as a command.
	exec(t, b, `_pysh_auto("ls")`)
	assert.Equal(t, []string{"ls"}, sh.cmds)

	// A live binding wins over the command.
	sh.cmds = nil
	sess.Globals["ls"] = starlark.MakeInt(5)
	d, _ := exec(t, b, `_pysh_auto("ls")`)
	assert.Empty(t, sh.cmds)
	assert.Equal(t, "5", d)
}

func TestEvalErrors(t *testing.T) {
	b, _, _ := newBridge(t)

	_, err := b.Exec("1 // 0", io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, Detail(err), "division by zero")

	// Errors never clobber the namespace.
	exec(t, b, "x = 1")
	_, err = b.Exec("x = undefined_name + 1", io.Discard, io.Discard)
	require.Error(t, err)
	d, _ := exec(t, b, "x")
	assert.Equal(t, "1", d)
}
