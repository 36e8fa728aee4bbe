package checkpoint

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/event"
	"github.com/RyanLisse/opencode-rs/internal/logging"
)

// TagPrefix is the namespace under which checkpoint tags live.
const TagPrefix = "cp"

// Manager creates, lists, and restores checkpoints in a single repository.
//
// All operations serialize on an internal mutex: save mutates HEAD and the
// index, so two concurrent saves against the same repository would corrupt
// each other. Concurrent sandbox runs touching the same repository remain the
// caller's concern; the sandbox tool keeps agents on separate branches.
type Manager struct {
	repoPath     string
	branchPrefix string
	executor     CommandExecutor
	bus          *event.Bus
	logger       *logging.Logger

	mu sync.Mutex
}

// NewManager creates a checkpoint manager for the repository at repoPath.
// branchPrefix namespaces branches created by Restore; empty means "agent".
// A nil bus disables event publishing and a nil logger discards output.
func NewManager(repoPath, branchPrefix string, bus *event.Bus, logger *logging.Logger) *Manager {
	return NewManagerWithExecutor(repoPath, branchPrefix, bus, logger, NewCLICommandExecutor())
}

// NewManagerWithExecutor creates a Manager with a custom executor.
// This is primarily useful for testing.
func NewManagerWithExecutor(repoPath, branchPrefix string, bus *event.Bus, logger *logging.Logger, executor CommandExecutor) *Manager {
	if branchPrefix == "" {
		branchPrefix = "agent"
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		repoPath:     repoPath,
		branchPrefix: branchPrefix,
		executor:     executor,
		bus:          bus,
		logger:       logger.WithComponent("checkpoint"),
	}
}

// RepoPath returns the repository the manager operates on.
func (m *Manager) RepoPath() string {
	return m.repoPath
}

// Save snapshots the current state of branch as a checkpoint for agentID.
// It stages everything in the working tree, commits (empty commits allowed,
// so a checkpoint always exists even with no changes), and marks the commit
// with an annotated tag. The repository's HEAD is left on branch.
// Returns the created tag name.
func (m *Manager) Save(branch, agentID, message string) (string, error) {
	if branch == "" || agentID == "" {
		return "", errors.NewGitError("branch and agent id required", errors.ErrInvalidInput).
			WithRepository(m.repoPath)
	}
	if message == "" {
		return "", errors.NewGitError("checkpoint message required", errors.ErrInvalidInput).
			WithRepository(m.repoPath).
			WithBranch(branch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.verifyBranch(branch); err != nil {
		return "", err
	}

	output, err := m.executor.Run(m.repoPath, "git", "checkout", branch)
	if err != nil {
		return "", errors.NewGitError("failed to check out branch", err).
			WithRepository(m.repoPath).
			WithBranch(branch).
			WithGitOutput(string(output))
	}

	output, err = m.executor.Run(m.repoPath, "git", "add", "-A")
	if err != nil {
		return "", errors.NewGitError("failed to stage changes", err).
			WithRepository(m.repoPath).
			WithBranch(branch).
			WithGitOutput(string(output))
	}

	output, err = m.executor.Run(m.repoPath, "git", "commit", "--allow-empty", "-m", message)
	if err != nil {
		return "", errors.NewGitError("failed to commit changes", err).
			WithRepository(m.repoPath).
			WithBranch(branch).
			WithGitOutput(string(output))
	}

	// The tag must point at the commit made above, so ordering matters.
	tag := fmt.Sprintf("%s/%s/%s", TagPrefix, agentID, uuid.NewString())
	output, err = m.executor.Run(m.repoPath, "git", "tag", "-a", tag, "-m", message)
	if err != nil {
		return "", errors.NewGitError("failed to create checkpoint tag", err).
			WithRepository(m.repoPath).
			WithBranch(branch).
			WithTag(tag).
			WithGitOutput(string(output))
	}

	m.logger.Info("checkpoint saved", "agent_id", agentID, "branch", branch, "tag", tag)
	if m.bus != nil {
		m.bus.Publish(event.NewCheckpointSavedEvent(agentID, tag, branch))
	}
	return tag, nil
}

// List returns the checkpoint tags recorded for agentID, lexicographically
// sorted. An agent with no checkpoints yields an empty slice.
func (m *Manager) List(agentID string) ([]string, error) {
	if agentID == "" {
		return nil, errors.NewGitError("agent id required", errors.ErrInvalidInput).
			WithRepository(m.repoPath)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pattern := fmt.Sprintf("%s/%s/*", TagPrefix, agentID)
	output, err := m.executor.Run(m.repoPath, "git", "tag", "--list", pattern)
	if err != nil {
		if isNotRepository(output) {
			return nil, errors.NewGitError("not a git repository", errors.ErrNotGitRepository).
				WithRepository(m.repoPath).
				WithGitOutput(string(output))
		}
		return nil, errors.NewGitError("failed to list checkpoint tags", err).
			WithRepository(m.repoPath).
			WithGitOutput(string(output))
	}

	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return []string{}, nil
	}

	tags := strings.Split(trimmed, "\n")
	for i, tag := range tags {
		tags[i] = strings.TrimSpace(tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Restore creates a new branch for newAgentID at the commit a checkpoint tag
// points to. The branch the checkpoint was saved from is never modified or
// checked out, so restoring is safe while the original agent still runs.
// Restore does not spawn an agent; spawn one on the returned branch.
func (m *Manager) Restore(tag, newAgentID string) (string, error) {
	if tag == "" || newAgentID == "" {
		return "", errors.NewGitError("tag and agent id required", errors.ErrInvalidInput).
			WithRepository(m.repoPath)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// ^{commit} peels the annotated tag; failure means the tag is absent
	// or points at something that is not a commit.
	output, err := m.executor.Run(m.repoPath, "git", "rev-parse", "--verify", tag+"^{commit}")
	if err != nil {
		if isNotRepository(output) {
			return "", errors.NewGitError("not a git repository", errors.ErrNotGitRepository).
				WithRepository(m.repoPath).
				WithGitOutput(string(output))
		}
		return "", errors.NewGitError("checkpoint tag not found", errors.ErrTagNotFound).
			WithRepository(m.repoPath).
			WithTag(tag).
			WithGitOutput(string(output))
	}

	newBranch := m.branchPrefix + "/" + newAgentID
	output, err = m.executor.Run(m.repoPath, "git", "branch", newBranch, tag)
	if err != nil {
		if strings.Contains(string(output), "already exists") {
			return "", errors.NewGitError("branch already exists", errors.ErrBranchExists).
				WithRepository(m.repoPath).
				WithBranch(newBranch).
				WithGitOutput(string(output))
		}
		return "", errors.NewGitError("failed to create branch from checkpoint", err).
			WithRepository(m.repoPath).
			WithBranch(newBranch).
			WithTag(tag).
			WithGitOutput(string(output))
	}

	m.logger.Info("checkpoint restored", "tag", tag, "agent_id", newAgentID, "branch", newBranch)
	if m.bus != nil {
		m.bus.Publish(event.NewCheckpointRestoredEvent(tag, newAgentID, newBranch))
	}
	return newBranch, nil
}

// verifyBranch confirms the branch ref exists before save mutates anything.
func (m *Manager) verifyBranch(branch string) error {
	output, err := m.executor.Run(m.repoPath, "git", "rev-parse", "--verify", "refs/heads/"+branch)
	if err != nil {
		if isNotRepository(output) {
			return errors.NewGitError("not a git repository", errors.ErrNotGitRepository).
				WithRepository(m.repoPath).
				WithGitOutput(string(output))
		}
		return errors.NewGitError("branch not found", errors.ErrBranchNotFound).
			WithRepository(m.repoPath).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}
