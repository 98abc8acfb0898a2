package builtins

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charles-JpEG/pysh/core/session"
	"github.com/Charles-JpEG/pysh/core/shellexec"
)

func runBuiltin(t *testing.T, fn CommandFunc, sess *session.Session, args ...string) (int, string, string) {
	t.Helper()
	if sess == nil {
		sess = session.New(nil, nil)
	}
	e := shellexec.NewExecutor(sess, afero.NewMemMapFs(), nil)
	Install(e)
	var out, errb bytes.Buffer
	code := fn(&shellexec.BuiltinContext{
		Args:   args,
		Stdin:  strings.NewReader(""),
		Stdout: &out,
		Stderr: &errb,
		Sess:   sess,
		Fs:     e.Fs,
		Exec:   e,
	})
	return code, out.String(), errb.String()
}

func TestInstallRegistersAll(t *testing.T) {
	e := shellexec.NewExecutor(session.New(nil, nil), afero.NewMemMapFs(), nil)
	Install(e)
	for _, name := range []string{"cd", "exit", "export", "unset", "jobs", "help", "history"} {
		assert.Contains(t, e.Builtins, name)
	}
}

func TestCd(t *testing.T) {
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(orig) })

	dir := t.TempDir()
	sess := session.New(nil, nil)

	code, _, _ := runBuiltin(t, Cd, sess, "cd", dir)
	assert.Equal(t, 0, code)
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, sess.Getenv("PWD"))
	assert.Equal(t, orig, sess.Getenv("OLDPWD"))

	// cd - returns to the previous directory and echoes it.
	code, out, _ := runBuiltin(t, Cd, sess, "cd", "-")
	assert.Equal(t, 0, code)
	assert.Equal(t, orig+"\n", out)
}

func TestCdErrors(t *testing.T) {
	sess := session.New(nil, nil)
	code, _, errOut := runBuiltin(t, Cd, sess, "cd", "/no/such/dir-at-all")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "cd:")

	code, _, errOut = runBuiltin(t, Cd, sess, "cd")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "HOME not set")
}

func TestExit(t *testing.T) {
	sess := session.New(nil, nil)
	e := shellexec.NewExecutor(sess, afero.NewMemMapFs(), nil)
	var out, errb bytes.Buffer
	ctx := &shellexec.BuiltinContext{Args: []string{"exit", "3"}, Stdout: &out, Stderr: &errb, Sess: sess, Exec: e}

	code := Exit(ctx)
	assert.Equal(t, 3, code)
	done, status := e.ExitRequested()
	assert.True(t, done)
	assert.Equal(t, 3, status)

	ctx.Args = []string{"exit", "nope"}
	code = Exit(ctx)
	assert.Equal(t, 2, code)
	assert.Contains(t, errb.String(), "numeric argument required")
}

func TestExport(t *testing.T) {
	sess := session.New(nil, nil)

	code, _, _ := runBuiltin(t, Export, sess, "export", "GREETING=hello")
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello", sess.Getenv("GREETING"))

	_, out, _ := runBuiltin(t, Export, sess, "export")
	assert.Contains(t, out, "GREETING=hello")

	code, _, errOut := runBuiltin(t, Export, sess, "export", "not-an-assignment")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not a valid assignment")
}

func TestUnset(t *testing.T) {
	sess := session.New([]string{"DOOMED=1"}, nil)
	code, _, _ := runBuiltin(t, Unset, sess, "unset", "DOOMED")
	assert.Equal(t, 0, code)
	_, ok := sess.LookupEnv("DOOMED")
	assert.False(t, ok)

	code, _, _ = runBuiltin(t, Unset, sess, "unset")
	assert.Equal(t, 1, code)
}

func TestJobsEmpty(t *testing.T) {
	code, out, _ := runBuiltin(t, Jobs, nil, "jobs")
	assert.Equal(t, 0, code)
	assert.Empty(t, out)
}

func TestHistory(t *testing.T) {
	sess := session.New(nil, nil)
	sess.History = []string{"x = 1", "echo hi"}

	code, out, _ := runBuiltin(t, History, sess, "history")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "    1  x = 1")
	assert.Contains(t, out, "    2  echo hi")
}

func TestHelp(t *testing.T) {
	code, out, _ := runBuiltin(t, Help, nil, "help")
	assert.Equal(t, 0, code)
	for _, name := range Names() {
		assert.Contains(t, out, name)
	}
}

func TestHelpFlag(t *testing.T) {
	code, out, _ := runBuiltin(t, Cd, nil, "cd", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "usage: cd")
}
