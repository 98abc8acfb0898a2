// Package builtins holds the commands that run inside the interpreter
// process: the ones that must touch session state to be useful.
package builtins

import (
	"fmt"
	"io"
	"sort"

	getopt "github.com/pborman/getopt/v2"

	"github.com/Charles-JpEG/pysh/core/shellexec"
)

type CommandFunc = shellexec.BuiltinFunc

type entry struct {
	fn    CommandFunc
	short string
}

// all holds every registered builtin by name.
var all = make(map[string]entry)

func register(name, short string, fn CommandFunc) {
	all[name] = entry{fn: fn, short: short}
}

// Install adds every builtin to the executor's dispatch table.
func Install(e *shellexec.Executor) {
	for name, ent := range all {
		e.Builtins[name] = ent.fn
	}
}

// Names lists the registered builtins in sorted order.
func Names() []string {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SimpleCommand handles the boilerplate of flag parsing and help for
// a builtin.
type SimpleCommand struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help
	// flag isn't added.
	ShowHelp *bool
	// NeverBail skips bailing out on flag errors and always runs the
	// callback.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}
	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run parses flags from the context and, if that succeeds, calls the
// callback for the command body.
func (s *SimpleCommand) Run(ctx *shellexec.BuiltinContext, callback func() int) int {
	opts := s.Flags()

	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(ctx.Args, nil)
	if err != nil && !s.NeverBail {
		fmt.Fprintf(ctx.Stderr, "error: %s\n\n", err)
		s.PrintHelp(ctx.Stdout)
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(ctx.Stdout)
		return 0
	}

	return callback()
}
