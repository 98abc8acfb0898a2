package builtins

import (
	"fmt"

	"github.com/Charles-JpEG/pysh/core/shellexec"
)

// Jobs lists the background pipelines of the session.
func Jobs(ctx *shellexec.BuiltinContext) int {
	cmd := &SimpleCommand{
		Use:   "jobs",
		Short: "List background jobs.",
	}

	return cmd.Run(ctx, func() int {
		for _, job := range ctx.Exec.Jobs.List() {
			fmt.Fprintln(ctx.Stdout, job)
		}
		return 0
	})
}

func init() {
	register("jobs", "List background jobs.", Jobs)
}
