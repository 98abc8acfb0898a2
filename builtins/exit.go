package builtins

import (
	"fmt"
	"strconv"

	"github.com/Charles-JpEG/pysh/core/shellexec"
)

// Exit asks the session to end after the current statement. Its exit
// status participates in && and || chains like any other command, so
// `exit 1 && echo A` prints nothing while `exit 0 && echo A` echoes.
func Exit(ctx *shellexec.BuiltinContext) int {
	cmd := &SimpleCommand{
		Use:   "exit [code]",
		Short: "End the session with the given status.",
	}

	return cmd.Run(ctx, func() int {
		code := 0
		if args := cmd.Flags().Args(); len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Fprintf(ctx.Stderr, "exit: %s: numeric argument required\n", args[0])
				n = 2
			}
			code = n
		}
		ctx.Exec.RequestExit(code)
		return code
	})
}

func init() {
	register("exit", "End the session with the given status.", Exit)
}
