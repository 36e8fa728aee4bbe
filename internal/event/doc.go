// Package event provides a pub-sub event bus for decoupled inter-component
// communication in opencode.
//
// This package enables loose coupling between the CLI, REPL, and core
// components by allowing them to communicate through events rather than direct
// method calls. Components can publish events without knowing who will receive
// them, and subscribe to events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The package defines several categories of events:
//
// Agent Lifecycle:
//   - [AgentSpawnedEvent]: Emitted when an agent is registered and its task launched
//   - [AgentStoppedEvent]: Emitted when an agent is stopped or completes cleanly
//   - [AgentFailedEvent]: Emitted when an agent's background task errors
//
// Swarm Events:
//   - [SwarmProgressEvent]: Emitted as sub-task spawns settle during a swarm run
//   - [SwarmCompletedEvent]: Emitted once all sub-tasks of a swarm run have settled
//
// Checkpoint Events:
//   - [CheckpointSavedEvent]: Emitted when a branch checkpoint tag is created
//   - [CheckpointRestoredEvent]: Emitted when a branch is forked from a tag
//
// Profile Events:
//   - [ProfilesReloadedEvent]: Emitted when the profile file is reloaded from disk
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("agent.spawned", func(e event.Event) {
//	    spawned := e.(event.AgentSpawnedEvent)
//	    log.Printf("Agent %s spawned", spawned.AgentID)
//	})
//
//	// Subscribe to a topic pattern (glob syntax)
//	bus.Subscribe("swarm.*", func(e event.Event) {
//	    log.Printf("Swarm event: %s", e.EventType())
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewAgentSpawnedEvent("builder-core", "rusty", "agent/builder-core"))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("checkpoint.saved", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - agent.spawned, agent.stopped, agent.failed
//   - swarm.progress, swarm.completed
//   - checkpoint.saved, checkpoint.restored
//   - profile.reloaded
package event
