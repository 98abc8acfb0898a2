package builtins

import (
	"fmt"

	"github.com/Charles-JpEG/pysh/core/shellexec"
)

// Unset removes names from the environment and from the script
// namespace.
func Unset(ctx *shellexec.BuiltinContext) int {
	cmd := &SimpleCommand{
		Use:   "unset NAME...",
		Short: "Remove variables from the session.",
	}

	return cmd.Run(ctx, func() int {
		args := cmd.Flags().Args()
		if len(args) == 0 {
			fmt.Fprintln(ctx.Stderr, "unset: name required")
			return 1
		}
		for _, name := range args {
			ctx.Sess.Unsetenv(name)
			delete(ctx.Sess.Globals, name)
		}
		return 0
	})
}

func init() {
	register("unset", "Remove variables from the session.", Unset)
}
