package expand

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charles-JpEG/pysh/core/token"
)

func lookup(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func expandLine(t *testing.T, e Expander, line string) []string {
	t.Helper()
	toks, err := token.Split(line)
	require.NoError(t, err)
	out, err := e.Tokens(toks)
	require.NoError(t, err)
	return token.Texts(out)
}

func TestVariables(t *testing.T) {
	e := Expander{Lookup: lookup(map[string]string{
		"name": "world",
		"n":    "3",
	})}

	assert.Equal(t, []string{"echo", "world"}, expandLine(t, e, "echo $name"))
	assert.Equal(t, []string{"echo", "world!"}, expandLine(t, e, "echo ${name}!"))
	assert.Equal(t, []string{"echo", "3rd"}, expandLine(t, e, "echo ${n}rd"))
	assert.Equal(t, []string{"echo", "hi world"}, expandLine(t, e, `echo "hi $name"`))
}

func TestUndefinedPolicy(t *testing.T) {
	e := Expander{Lookup: lookup(nil)}
	assert.Equal(t, []string{"echo", ""}, expandLine(t, e, "echo $nope"))

	e.Strict = true
	toks, err := token.Split("echo $nope")
	require.NoError(t, err)
	_, err = e.Tokens(toks)
	assert.ErrorIs(t, err, ErrUndefinedVariable)
}

func TestQuoteSuppression(t *testing.T) {
	e := Expander{Lookup: lookup(map[string]string{"x": "42"})}

	assert.Equal(t, []string{"echo", "$x"}, expandLine(t, e, `echo '$x'`))
	assert.Equal(t, []string{"echo", "$x"}, expandLine(t, e, `echo "\$x"`))
	assert.Equal(t, []string{"echo", "$x"}, expandLine(t, e, `echo \$x`))
	assert.Equal(t, []string{"echo", "42"}, expandLine(t, e, `echo "$x"`))
}

func TestCommandSubstitution(t *testing.T) {
	var got []string
	e := Expander{
		Lookup: lookup(nil),
		Capture: func(cmd string) (string, error) {
			got = append(got, cmd)
			return "two words\n", nil
		},
	}

	// Output lands as a single word, one trailing newline removed.
	assert.Equal(t, []string{"echo", "two words"}, expandLine(t, e, "echo $(printf x)"))
	assert.Equal(t, []string{"echo", "two words"}, expandLine(t, e, "echo `printf x`"))
	assert.Equal(t, []string{"printf x", "printf x"}, got)

	fail := Expander{Capture: func(string) (string, error) {
		return "", errors.New("boom")
	}}
	toks, err := token.Split("echo $(bad)")
	require.NoError(t, err)
	_, err = fail.Tokens(toks)
	assert.Error(t, err)
}

func TestTilde(t *testing.T) {
	e := Expander{Home: "/home/kim"}

	assert.Equal(t, []string{"cd", "/home/kim"}, expandLine(t, e, "cd ~"))
	assert.Equal(t, []string{"ls", "/home/kim/src"}, expandLine(t, e, "ls ~/src"))
	assert.Equal(t, []string{"echo", "~user"}, expandLine(t, e, "echo ~user"))
	assert.Equal(t, []string{"echo", "a~b"}, expandLine(t, e, "echo a~b"))
	assert.Equal(t, []string{"echo", "~"}, expandLine(t, e, "echo '~'"))
}

func TestLoneDollar(t *testing.T) {
	e := Expander{}
	assert.Equal(t, []string{"echo", "$"}, expandLine(t, e, "echo $"))
	assert.Equal(t, []string{"echo", "a$1"}, expandLine(t, e, "echo a$1"))
}

func TestIdempotent(t *testing.T) {
	e := Expander{Lookup: lookup(map[string]string{"v": "$v"})}

	toks, err := token.Split("echo $v")
	require.NoError(t, err)
	once, err := e.Tokens(toks)
	require.NoError(t, err)
	twice, err := e.Tokens(once)
	require.NoError(t, err)
	assert.Equal(t, token.Texts(once), token.Texts(twice))
	assert.Equal(t, []string{"echo", "$v"}, token.Texts(twice))
}
