package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.starlark.net/starlark"
)

func TestEnvOverlay(t *testing.T) {
	s := New([]string{"PATH=/bin", "HOME=/home/u"}, nil)

	assert.Equal(t, "/bin", s.Getenv("PATH"))

	s.Setenv("FOO", "bar")
	v, ok := s.LookupEnv("FOO")
	assert.True(t, ok)
	assert.Equal(t, "bar", v)

	s.Unsetenv("FOO")
	_, ok = s.LookupEnv("FOO")
	assert.False(t, ok)
}

func TestEnvironMergesScriptVars(t *testing.T) {
	s := New([]string{"PATH=/bin"}, nil)
	s.Globals["myvar"] = starlark.MakeInt(123)
	s.Globals["greeting"] = starlark.String("hi")
	s.Globals["_hidden"] = starlark.MakeInt(1)
	s.Globals["fn"] = starlark.NewBuiltin("fn", nil)

	env := s.Environ()
	assert.Contains(t, env, "PATH=/bin")
	assert.Contains(t, env, "myvar=123")
	assert.Contains(t, env, "greeting=hi")
	for _, e := range env {
		assert.NotContains(t, e, "_hidden")
		assert.NotContains(t, e, "fn=")
	}
}

func TestLookupPrefersScriptVars(t *testing.T) {
	s := New([]string{"x=env"}, nil)
	s.Globals["x"] = starlark.MakeInt(42)

	v, ok := s.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	v, ok = s.Lookup("PATHLESS")
	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestStr(t *testing.T) {
	assert.Equal(t, "hi", Str(starlark.String("hi")))
	assert.Equal(t, "42", Str(starlark.MakeInt(42)))

	l := starlark.NewList([]starlark.Value{
		starlark.MakeInt(1), starlark.MakeInt(2), starlark.MakeInt(3),
	})
	assert.Equal(t, "[1, 2, 3]", Str(l))
}

func TestBound(t *testing.T) {
	s := New(nil, nil)
	assert.False(t, s.Bound("f"))

	s.Globals["f"] = starlark.NewBuiltin("f", nil)
	assert.True(t, s.Bound("f"))

	// Universe names count as bound.
	assert.True(t, s.Bound("print"))
	assert.True(t, s.Bound("len"))

	// None placeholders do not.
	s.Globals["ghost"] = starlark.None
	assert.False(t, s.Bound("ghost"))
}

func TestProtected(t *testing.T) {
	s := New(nil, []string{"ls", "cat"})
	assert.True(t, s.IsProtected("ls"))
	assert.False(t, s.IsProtected("made_up"))
	s.Protect("made_up")
	assert.True(t, s.IsProtected("made_up"))
}
