// Package session holds the live state of one interpreter instance:
// the script variable namespace, the environment overlay, and the set
// of protected command names.
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.starlark.net/starlark"
)

// UndefinedVarPolicy controls what `$name` expands to when name is not
// bound anywhere in the session.
type UndefinedVarPolicy int

const (
	// UndefinedEmpty expands unknown names to the empty string.
	UndefinedEmpty UndefinedVarPolicy = iota
	// UndefinedError rejects the statement with ErrUndefinedVariable.
	UndefinedError
)

// Session is the single source of truth for both shell-style expansion
// and script-language variable lookup. The Globals dict is created once
// and never replaced; the script bridge executes every chunk against it
// so routines see a live namespace, not a snapshot.
type Session struct {
	// Globals is the long-lived script namespace. Owned here, shared by
	// reference with the evaluator for the lifetime of the session.
	Globals starlark.StringDict

	mu  sync.RWMutex
	env map[string]string

	protected map[string]bool

	// IndentUnit is fixed by the first continuation line of the first
	// multi-line block; zero means not yet established.
	IndentUnit int

	// TabWidth is the column width used to measure indentation.
	TabWidth int

	UndefinedVars UndefinedVarPolicy

	// History of raw input lines, appended by the front-end.
	History []string
}

// New creates a session with an environment copied from environ
// ("KEY=VALUE" pairs, normally os.Environ()).
func New(environ []string, protected []string) *Session {
	s := &Session{
		Globals:   make(starlark.StringDict),
		env:       make(map[string]string, len(environ)),
		protected: make(map[string]bool, len(protected)),
		TabWidth:  8,
	}
	for _, e := range environ {
		key, value, _ := strings.Cut(e, "=")
		s.env[key] = value
	}
	for _, name := range protected {
		s.protected[name] = true
	}
	return s
}

// Setenv sets an environment overlay variable, visible to every child
// process spawned afterwards.
func (s *Session) Setenv(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env[key] = value
}

// Unsetenv removes an environment overlay variable.
func (s *Session) Unsetenv(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.env, key)
}

// Getenv returns the overlay value for key, or "".
func (s *Session) Getenv(key string) string {
	v, _ := s.LookupEnv(key)
	return v
}

// LookupEnv returns the overlay value for key and whether it was set.
func (s *Session) LookupEnv(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.env[key]
	return v, ok
}

// Environ returns the environment for child processes: the overlay
// merged with the stringified script variables, script winning on
// conflicts. Sorted for determinism.
func (s *Session) Environ() []string {
	s.mu.RLock()
	merged := make(map[string]string, len(s.env)+len(s.Globals))
	for k, v := range s.env {
		merged[k] = v
	}
	s.mu.RUnlock()

	for name, value := range s.Globals {
		if !exportable(name, value) {
			continue
		}
		merged[name] = Str(value)
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// Lookup resolves name for `$name` expansion: script variables first,
// then the environment overlay.
func (s *Session) Lookup(name string) (string, bool) {
	if v, ok := s.Globals[name]; ok && v != starlark.None {
		return Str(v), true
	}
	return s.LookupEnv(name)
}

// Bound reports whether name is usable as a script identifier right
// now: bound in the session namespace or predeclared by the evaluator.
// Placeholder None bindings do not count.
func (s *Session) Bound(name string) bool {
	if v, ok := s.Globals[name]; ok && v != starlark.None {
		return true
	}
	_, ok := starlark.Universe[name]
	return ok
}

// IsProtected reports whether name is a protected command: at top
// level its bare-word dispatch always goes to the shell, even when a
// same-named variable exists.
func (s *Session) IsProtected(name string) bool {
	return s.protected[name]
}

// Protect adds name to the protected command set.
func (s *Session) Protect(name string) {
	s.protected[name] = true
}

// Str converts a script value to its standard textual form: the string
// content for strings, the value's own rendering otherwise. This is the
// form used both for `$name` expansion and the environment overlay.
func Str(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// exportable reports whether a script binding belongs in a child
// process environment. Callables and internal helpers do not.
func exportable(name string, v starlark.Value) bool {
	if strings.HasPrefix(name, "_") {
		return false
	}
	switch v.(type) {
	case *starlark.Function, *starlark.Builtin:
		return false
	}
	if v == starlark.None {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
