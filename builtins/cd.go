package builtins

import (
	"fmt"
	"os"

	"github.com/Charles-JpEG/pysh/core/shellexec"
)

// Cd changes the working directory of the whole interpreter process,
// so child commands started afterwards inherit it.
func Cd(ctx *shellexec.BuiltinContext) int {
	cmd := &SimpleCommand{
		Use:   "cd [dir]",
		Short: "Change the working directory.",
	}

	return cmd.Run(ctx, func() int {
		args := cmd.Flags().Args()

		var target string
		switch {
		case len(args) == 0:
			target = ctx.Sess.Getenv("HOME")
			if target == "" {
				fmt.Fprintln(ctx.Stderr, "cd: HOME not set")
				return 1
			}
		case args[0] == "-":
			target = ctx.Sess.Getenv("OLDPWD")
			if target == "" {
				fmt.Fprintln(ctx.Stderr, "cd: OLDPWD not set")
				return 1
			}
			fmt.Fprintln(ctx.Stdout, target)
		default:
			target = args[0]
		}

		prev, _ := os.Getwd()
		if err := os.Chdir(target); err != nil {
			fmt.Fprintf(ctx.Stderr, "cd: %v\n", err)
			return 1
		}
		ctx.Sess.Setenv("OLDPWD", prev)
		if wd, err := os.Getwd(); err == nil {
			ctx.Sess.Setenv("PWD", wd)
		}
		return 0
	})
}

func init() {
	register("cd", "Change the working directory.", Cd)
}
