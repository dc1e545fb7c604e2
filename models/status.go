package models

import "time"

// RefreshResult is the outcome of a successful refresh run.
type RefreshResult struct {
	Projects int `json:"projects"`
	Units    int `json:"units"`
}

// RefreshStatus is the observable state of the refresh pipeline.
type RefreshStatus struct {
	RunID       string         `json:"run_id,omitempty"`
	IsRunning   bool           `json:"is_running"`
	StartTime   *time.Time     `json:"start_time"`
	EndTime     *time.Time     `json:"end_time"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Result      *RefreshResult `json:"result"`
	CurrentStep string         `json:"current_step"`
	Logs        []string       `json:"logs"`
}

// Clone returns a deep copy so callers never share memory with the owner.
func (s RefreshStatus) Clone() RefreshStatus {
	out := s
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	out.Logs = append([]string(nil), s.Logs...)
	if out.Logs == nil {
		out.Logs = []string{}
	}
	return out
}
