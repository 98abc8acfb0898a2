package builtins

import (
	"fmt"
	"strings"

	"github.com/Charles-JpEG/pysh/core/shellexec"
)

// Export sets environment variables for child commands. Without
// arguments it prints the merged environment, script bindings
// included.
func Export(ctx *shellexec.BuiltinContext) int {
	cmd := &SimpleCommand{
		Use:   "export [NAME=VALUE]...",
		Short: "Set environment variables for child commands.",
	}

	return cmd.Run(ctx, func() int {
		args := cmd.Flags().Args()
		if len(args) == 0 {
			for _, kv := range ctx.Sess.Environ() {
				fmt.Fprintln(ctx.Stdout, kv)
			}
			return 0
		}

		code := 0
		for _, arg := range args {
			name, value, ok := strings.Cut(arg, "=")
			if !ok || name == "" {
				fmt.Fprintf(ctx.Stderr, "export: %s: not a valid assignment\n", arg)
				code = 1
				continue
			}
			ctx.Sess.Setenv(name, value)
		}
		return code
	})
}

func init() {
	register("export", "Set environment variables for child commands.", Export)
}
