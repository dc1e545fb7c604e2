package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/summerlia/zhuhaibay/models"
)

const (
	maxStatusLogs   = 50
	maxStepErrRunes = 60

	StepIdle     = "idle"
	StepFetch    = "fetch"
	StepParse    = "parse"
	StepValidate = "validate"
	StepPersist  = "persist"
	StepVerify   = "verify"
	StepDone     = "done"
)

// statusTracker owns the RefreshStatus. Every read and write goes through mu.
type statusTracker struct {
	mu     sync.Mutex
	status models.RefreshStatus
	now    func() time.Time
}

func newStatusTracker(now func() time.Time) *statusTracker {
	return &statusTracker{
		status: models.RefreshStatus{CurrentStep: StepIdle, Logs: []string{}},
		now:    now,
	}
}

// snapshot returns a deep copy of the current status.
func (t *statusTracker) snapshot() models.RefreshStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.Clone()
}

// begin resets the status for a new run. It returns false, with the current
// status, when a run is already active.
func (t *statusTracker) begin(runID string) (bool, models.RefreshStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsRunning {
		return false, t.status.Clone()
	}

	start := t.now()
	t.status = models.RefreshStatus{
		RunID:       runID,
		IsRunning:   true,
		StartTime:   &start,
		CurrentStep: StepFetch,
		Logs:        []string{},
	}
	t.appendLocked(fmt.Sprintf("refresh %s started", runID))
	return true, t.status.Clone()
}

// step moves to a new pipeline step and logs msg alongside it.
func (t *statusTracker) step(name, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.CurrentStep = name
	t.appendLocked(msg)
}

func (t *statusTracker) logf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLocked(fmt.Sprintf(format, args...))
}

// finish ends the run and records either the result or the error.
func (t *statusTracker) finish(result *models.RefreshResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	end := t.now()
	t.status.IsRunning = false
	t.status.EndTime = &end

	if err != nil {
		t.status.Error = err.Error()
		t.status.ErrorKind = models.ErrorKind(err)
		t.status.Result = nil
		t.status.CurrentStep = "failed: " + truncate(err.Error(), maxStepErrRunes)
		t.appendLocked("refresh failed: " + err.Error())
		return
	}

	t.status.Result = result
	t.status.CurrentStep = StepDone
	t.appendLocked(fmt.Sprintf("refresh done: %d projects, %d units", result.Projects, result.Units))
}

func (t *statusTracker) appendLocked(msg string) {
	line := fmt.Sprintf("[%s] %s", t.now().Format("15:04:05"), msg)
	t.status.Logs = append(t.status.Logs, line)
	if over := len(t.status.Logs) - maxStatusLogs; over > 0 {
		t.status.Logs = append([]string(nil), t.status.Logs[over:]...)
	}
}
