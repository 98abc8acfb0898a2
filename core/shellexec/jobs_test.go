package shellexec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus(t *testing.T) {
	j := &Job{ID: 1, Command: "false"}
	state, _ := j.Status()
	assert.Equal(t, JobRunning, state)
	assert.Equal(t, "[1]  Running  false", j.String())

	j.finish(3)
	state, code := j.Status()
	assert.Equal(t, JobDone, state)
	assert.Equal(t, 3, code)
	assert.Equal(t, "[1]  Done(3)  false", j.String())
}

func TestJobStringHidesZeroCode(t *testing.T) {
	j := &Job{ID: 2, Command: "true"}
	j.finish(0)
	assert.Equal(t, "[2]  Done     true", j.String())
}

func TestFailedJobReportsExitCode(t *testing.T) {
	e := newExecutor(t)
	code, _, _ := runLine(t, e, "false &", nil)
	assert.Equal(t, 0, code)

	var notices []string
	require.Eventually(t, func() bool {
		notices = append(notices, e.Jobs.Reap()...)
		return len(notices) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, notices[0], "Done(1)")
	assert.Contains(t, notices[0], "false")
}

func TestBackgroundCommandNotFound(t *testing.T) {
	e := newExecutor(t)
	code, _, errOut := runLine(t, e, "definitely-not-a-command-xyz &", nil)
	assert.Equal(t, 0, code)
	assert.Contains(t, errOut, "command not found")

	notices := e.Jobs.Reap()
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "Done(127)")
}
