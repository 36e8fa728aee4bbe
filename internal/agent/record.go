package agent

import "fmt"

// Status is the lifecycle state of a supervised agent.
type Status int

const (
	// StatusRunning means the agent's background task is live.
	StatusRunning Status = iota
	// StatusStopped means the agent was stopped or completed cleanly.
	StatusStopped
	// StatusFailed means the background task terminated with an error.
	StatusFailed
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusStopped:
		return "Stopped"
	case StatusFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Record describes one supervised agent. Records are created by Spawn and
// mutated only by the Registry; values handed out by List and Get are
// snapshot copies.
type Record struct {
	// ID is the caller-assigned unique identifier.
	ID string
	// Profile names the behavioral profile the agent was spawned with.
	Profile string
	// Status is the current lifecycle state.
	Status Status
	// FailureReason describes why the task failed. Set only for StatusFailed.
	FailureReason string
	// Branch is the git branch the agent's sandbox environment is bound to.
	Branch string
}

// StatusDisplay renders the status for user-facing output, including the
// failure reason when the agent failed.
func (r Record) StatusDisplay() string {
	if r.Status == StatusFailed && r.FailureReason != "" {
		return fmt.Sprintf("Failed(%s)", r.FailureReason)
	}
	return r.Status.String()
}
