package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "agent.spawned", "swarm.progress")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Agent Lifecycle Events
// -----------------------------------------------------------------------------

// AgentSpawnedEvent is emitted when an agent is registered and its background
// task launched.
type AgentSpawnedEvent struct {
	baseEvent
	AgentID string // Unique identifier for the agent
	Profile string // Behavioral profile the agent was spawned with
	Branch  string // Git branch the agent operates on
}

// NewAgentSpawnedEvent creates an AgentSpawnedEvent.
func NewAgentSpawnedEvent(agentID, profile, branch string) AgentSpawnedEvent {
	return AgentSpawnedEvent{
		baseEvent: newBaseEvent("agent.spawned"),
		AgentID:   agentID,
		Profile:   profile,
		Branch:    branch,
	}
}

// AgentStoppedEvent is emitted when an agent is stopped explicitly or its
// background task completes cleanly.
type AgentStoppedEvent struct {
	baseEvent
	AgentID string // Unique identifier for the agent
	Reason  string // Reason for stopping (e.g., "requested", "completed")
}

// NewAgentStoppedEvent creates an AgentStoppedEvent.
func NewAgentStoppedEvent(agentID, reason string) AgentStoppedEvent {
	return AgentStoppedEvent{
		baseEvent: newBaseEvent("agent.stopped"),
		AgentID:   agentID,
		Reason:    reason,
	}
}

// AgentFailedEvent is emitted when an agent's background task terminates
// with an error before being stopped.
type AgentFailedEvent struct {
	baseEvent
	AgentID string // Unique identifier for the agent
	Reason  string // Failure description
}

// NewAgentFailedEvent creates an AgentFailedEvent.
func NewAgentFailedEvent(agentID, reason string) AgentFailedEvent {
	return AgentFailedEvent{
		baseEvent: newBaseEvent("agent.failed"),
		AgentID:   agentID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Swarm Events
// -----------------------------------------------------------------------------

// SwarmProgressEvent is emitted as sub-task spawns settle during a swarm run.
// The first event of a run has Completed == 0, the last Completed == Total.
type SwarmProgressEvent struct {
	baseEvent
	Total     int    // Total number of sub-tasks in the plan
	Completed int    // Sub-tasks settled so far
	Task      string // Description of the sub-task that just settled
}

// NewSwarmProgressEvent creates a SwarmProgressEvent.
func NewSwarmProgressEvent(total, completed int, task string) SwarmProgressEvent {
	return SwarmProgressEvent{
		baseEvent: newBaseEvent("swarm.progress"),
		Total:     total,
		Completed: completed,
		Task:      task,
	}
}

// SwarmCompletedEvent is emitted once all sub-tasks of a swarm run have
// settled, regardless of individual outcomes.
type SwarmCompletedEvent struct {
	baseEvent
	Total     int  // Total number of sub-tasks in the plan
	Succeeded int  // Sub-tasks whose agent spawn succeeded
	Failed    int  // Sub-tasks whose agent spawn failed
	Success   bool // True if every sub-task succeeded
}

// NewSwarmCompletedEvent creates a SwarmCompletedEvent.
func NewSwarmCompletedEvent(total, succeeded, failed int) SwarmCompletedEvent {
	return SwarmCompletedEvent{
		baseEvent: newBaseEvent("swarm.completed"),
		Total:     total,
		Succeeded: succeeded,
		Failed:    failed,
		Success:   failed == 0,
	}
}

// -----------------------------------------------------------------------------
// Checkpoint Events
// -----------------------------------------------------------------------------

// CheckpointSavedEvent is emitted when a branch checkpoint tag is created.
type CheckpointSavedEvent struct {
	baseEvent
	AgentID string // Agent whose branch was checkpointed
	Tag     string // Full tag name (cp/<agent-id>/<suffix>)
	Branch  string // Branch the checkpoint was cut from
}

// NewCheckpointSavedEvent creates a CheckpointSavedEvent.
func NewCheckpointSavedEvent(agentID, tag, branch string) CheckpointSavedEvent {
	return CheckpointSavedEvent{
		baseEvent: newBaseEvent("checkpoint.saved"),
		AgentID:   agentID,
		Tag:       tag,
		Branch:    branch,
	}
}

// CheckpointRestoredEvent is emitted when a new branch is forked from a
// checkpoint tag.
type CheckpointRestoredEvent struct {
	baseEvent
	Tag       string // Tag the branch was forked from
	AgentID   string // New agent id the branch was named for
	NewBranch string // Name of the created branch
}

// NewCheckpointRestoredEvent creates a CheckpointRestoredEvent.
func NewCheckpointRestoredEvent(tag, agentID, newBranch string) CheckpointRestoredEvent {
	return CheckpointRestoredEvent{
		baseEvent: newBaseEvent("checkpoint.restored"),
		Tag:       tag,
		AgentID:   agentID,
		NewBranch: newBranch,
	}
}

// -----------------------------------------------------------------------------
// Profile Events
// -----------------------------------------------------------------------------

// ProfilesReloadedEvent is emitted when the profile file is reloaded from disk.
type ProfilesReloadedEvent struct {
	baseEvent
	Path  string // Path of the profile file that changed
	Count int    // Number of profiles in the reloaded table
}

// NewProfilesReloadedEvent creates a ProfilesReloadedEvent.
func NewProfilesReloadedEvent(path string, count int) ProfilesReloadedEvent {
	return ProfilesReloadedEvent{
		baseEvent: newBaseEvent("profile.reloaded"),
		Path:      path,
		Count:     count,
	}
}
