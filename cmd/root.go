package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Charles-JpEG/pysh/core/config"
)

var (
	cfgPath string
	command string
)

func loadConfig() (*config.Configuration, error) {
	return config.Load(afero.NewOsFs(), cfgPath)
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pysh [script]",
	Short: "A shell with an embedded Python-style evaluator",
	Long: `pysh reads commands and Python-style statements from one prompt.
Both share a single namespace: variables assigned in code expand in
commands, and command output feeds back into code.`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runRoot,
	SilenceUsage: true,
}

// runRoot backs both the bare invocation and the run subcommand.
func runRoot(cmd *cobra.Command, args []string) error {
	script := ""
	if len(args) == 1 {
		script = args[0]
	}
	code, err := runShell(cmd, script, command)
	if err != nil {
		return err
	}
	exitFunc(code)
	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config file path")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single line and exit")
}
