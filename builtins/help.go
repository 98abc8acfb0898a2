package builtins

import (
	"fmt"

	"github.com/Charles-JpEG/pysh/core/shellexec"
)

// Help lists every builtin with its one line description.
func Help(ctx *shellexec.BuiltinContext) int {
	cmd := &SimpleCommand{
		Use:   "help",
		Short: "List the built-in commands.",
	}

	return cmd.Run(ctx, func() int {
		fmt.Fprintln(ctx.Stdout, "Built-in commands:")
		for _, name := range Names() {
			fmt.Fprintf(ctx.Stdout, "  %-10s %s\n", name, all[name].short)
		}
		return 0
	})
}

func init() {
	register("help", "List the built-in commands.", Help)
}
