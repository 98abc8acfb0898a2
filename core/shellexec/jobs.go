package shellexec

import (
	"fmt"
	"sort"
	"sync"
)

// JobState tracks a background pipeline's lifecycle.
type JobState int

const (
	JobRunning JobState = iota
	JobDone
)

func (s JobState) String() string {
	if s == JobDone {
		return "Done"
	}
	return "Running"
}

// Job is one background pipeline.
type Job struct {
	ID      int
	Command string

	mu    sync.Mutex
	state JobState
	code  int
}

func (j *Job) finish(code int) {
	j.mu.Lock()
	j.state = JobDone
	j.code = code
	j.mu.Unlock()
}

// Status reports the job's state and, once done, its exit code.
func (j *Job) Status() (JobState, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.code
}

// String renders the job the way the jobs builtin shows it. A job that
// finished with a non-zero code carries it in the label, so a failed
// job reads differently from a successful one.
func (j *Job) String() string {
	state, code := j.Status()
	label := state.String()
	if state == JobDone && code != 0 {
		label = fmt.Sprintf("Done(%d)", code)
	}
	return fmt.Sprintf("[%d]  %-8s %s", j.ID, label, j.Command)
}

// JobTable registers background pipelines and reaps finished ones.
// Reaping is non-blocking and happens between statements, never
// during one.
type JobTable struct {
	mu   sync.Mutex
	next int
	jobs map[int]*Job
}

func NewJobTable() *JobTable {
	return &JobTable{next: 1, jobs: map[int]*Job{}}
}

// Add registers a new running job and returns it.
func (t *JobTable) Add(command string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := &Job{ID: t.next, Command: command}
	t.next++
	t.jobs[j.ID] = j
	return j
}

// Reap removes finished jobs and returns one notice line per job, in
// id order.
func (t *JobTable) Reap() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var done []*Job
	for id, j := range t.jobs {
		if state, _ := j.Status(); state == JobDone {
			done = append(done, j)
			delete(t.jobs, id)
		}
	}
	sort.Slice(done, func(i, k int) bool { return done[i].ID < done[k].ID })
	notices := make([]string, 0, len(done))
	for _, j := range done {
		notices = append(notices, j.String())
	}
	if len(t.jobs) == 0 {
		t.next = 1
	}
	return notices
}

// List snapshots every registered job in id order.
func (t *JobTable) List() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	jobs := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs
}
