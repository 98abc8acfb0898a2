package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charles-JpEG/pysh/core"
	"github.com/Charles-JpEG/pysh/core/config"
)

func TestPromptRendering(t *testing.T) {
	color.NoColor = true
	cfg := config.Default()
	cfg.Prompt = `\w> `
	engine := core.NewEngine(cfg, nil)

	wd, err := os.Getwd()
	require.NoError(t, err)
	got := prompt(engine, cfg)

	home := engine.Sess.Getenv("HOME")
	want := wd
	if home != "" && strings.HasPrefix(wd, home) {
		want = "~" + strings.TrimPrefix(wd, home)
	}
	assert.Equal(t, want+"> ", got)
}

func TestPromptContinuation(t *testing.T) {
	color.NoColor = true
	cfg := config.Default()
	engine := core.NewEngine(cfg, nil)
	engine.SetStreams(strings.NewReader(""), new(bytes.Buffer), new(bytes.Buffer))

	engine.Interpret("if True:")
	assert.Equal(t, "... ", prompt(engine, cfg))
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/home/kim/.pysh_history", expandHome("~/.pysh_history", "/home/kim"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path", "/home/kim"))
	assert.Equal(t, "~/.x", expandHome("~/.x", ""))
}

func TestRunSubcommandRegistered(t *testing.T) {
	cmd, args, err := rootCmd.Find([]string{"run", "file.psh"})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd.Name())
	assert.Equal(t, []string{"file.psh"}, args)

	// A bare script path still resolves to the root command.
	cmd, _, err = rootCmd.Find([]string{"file.psh"})
	require.NoError(t, err)
	assert.Equal(t, rootCmd.Name(), cmd.Name())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "pysh ")
}
