package builtins

import (
	"fmt"

	"github.com/Charles-JpEG/pysh/core/shellexec"
)

// History prints the raw input lines of the session, numbered from 1.
func History(ctx *shellexec.BuiltinContext) int {
	cmd := &SimpleCommand{
		Use:   "history",
		Short: "Show the session's input history.",
	}

	return cmd.Run(ctx, func() int {
		for i, line := range ctx.Sess.History {
			fmt.Fprintf(ctx.Stdout, "%5d  %s\n", i+1, line)
		}
		return 0
	})
}

func init() {
	register("history", "Show the session's input history.", History)
}
