package cmd

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Charles-JpEG/pysh/core"
	"github.com/Charles-JpEG/pysh/core/config"
)

// exitFunc is swapped in tests.
var exitFunc = os.Exit

// runCmd is an explicit spelling of the default invocation, so
// `pysh run script.psh` and `pysh script.psh` behave the same.
var runCmd = &cobra.Command{
	Use:          "run [script]",
	Short:        "Run a script file, or start the interactive shell",
	Args:         cobra.MaximumNArgs(1),
	RunE:         runRoot,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

var promptColor = color.New(color.FgGreen, color.Bold)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return config.ConfigurationName
	}
	return filepath.Join(home, ".pysh", config.ConfigurationName)
}

func newLogger(cfg *config.Configuration) *log.Logger {
	logger := log.New(os.Stderr)
	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// runShell dispatches between the three entry modes: a script file, a
// -c one-liner, and the interactive loop.
func runShell(cmd *cobra.Command, scriptPath, oneLiner string) (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return 1, err
	}
	engine := core.NewEngine(cfg, newLogger(cfg))

	switch {
	case oneLiner != "":
		return engine.RunScript(strings.NewReader(oneLiner))
	case scriptPath != "":
		f, err := os.Open(scriptPath)
		if err != nil {
			return 1, err
		}
		defer f.Close()
		return engine.RunScript(f)
	default:
		return runInteractive(engine, cfg)
	}
}

func runInteractive(engine *core.Engine, cfg *config.Configuration) (int, error) {
	rlCfg := &readline.Config{
		Stdin:       readline.NewCancelableStdin(os.Stdin),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		HistoryFile: expandHome(cfg.HistoryFile, engine.Sess.Getenv("HOME")),
	}
	if err := rlCfg.Init(); err != nil {
		return 1, err
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return 1, err
	}
	defer rl.Close()

	for {
		rl.SetPrompt(prompt(engine, cfg))
		line, err := rl.Readline()

		switch {
		case err == io.EOF:
			res := engine.Flush()
			showResult(rl, res)
			if res.ExitRequested {
				return res.ExitStatus, nil
			}
			return res.ExitCode, nil

		case err == readline.ErrInterrupt:
			// Ctrl-C drops any half-typed block and re-prompts.
			engine.Interrupt()
			continue

		case err != nil:
			return 1, err
		}

		res := engine.Interpret(line)
		showResult(rl, res)
		if res.ExitRequested {
			return res.ExitStatus, nil
		}
	}
}

func showResult(w io.Writer, res core.ExecutionResult) {
	for _, notice := range res.Notices {
		fmt.Fprintln(w, notice)
	}
	for _, d := range res.Displays {
		fmt.Fprintln(w, d)
	}
}

// prompt renders the configured template: \u user, \h host, \w the
// working directory with the home prefix shown as ~, and \$ the
// ordinary prompt sigil. While a block is open, a continuation marker
// shows instead.
func prompt(engine *core.Engine, cfg *config.Configuration) string {
	if engine.Pending() {
		return "... "
	}

	p := cfg.Prompt
	if u, err := user.Current(); err == nil {
		p = strings.ReplaceAll(p, `\u`, u.Username)
	}
	if host, err := os.Hostname(); err == nil {
		p = strings.ReplaceAll(p, `\h`, host)
	}

	pwd, _ := os.Getwd()
	home := engine.Sess.Getenv("HOME")
	if home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}
	p = strings.ReplaceAll(p, `\w`, pwd)

	sigil := "$"
	if os.Getuid() == 0 {
		sigil = "#"
	}
	p = strings.ReplaceAll(p, `\$`, sigil)

	return promptColor.Sprint(p)
}

func expandHome(path, home string) string {
	if home == "" || !strings.HasPrefix(path, "~/") {
		return path
	}
	return filepath.Join(home, path[2:])
}
