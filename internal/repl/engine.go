// Package repl implements the interactive chat loop: slash commands for
// supervisor control and plain prompts routed to the completion provider.
// Line evaluation lives in Engine, independent of terminal handling, so
// the command surface stays testable without a TTY.
package repl

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/RyanLisse/opencode-rs/internal/agent"
	"github.com/RyanLisse/opencode-rs/internal/config"
	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/logging"
	"github.com/RyanLisse/opencode-rs/internal/profile"
	"github.com/RyanLisse/opencode-rs/internal/provider"
	"github.com/RyanLisse/opencode-rs/internal/util"
)

// ErrExit signals that the user asked to leave the loop.
var ErrExit = errors.New("exit")

// clearScreen is returned by /clear; the caller decides how to apply it.
const clearScreen = "\x1b[2J\x1b[1;1H"

const helpText = `Commands:
  /help             Show this help message
  /profile [name]   Show or switch the active profile
  /agents           List agents and their status
  /status           Alias for /agents
  /clear            Clear the screen
  /quit, /exit      Leave the REPL

Anything else is sent to the model using the active profile.`

// Engine evaluates one input line at a time.
type Engine struct {
	registry *agent.Registry
	profiles *profile.Table
	prov     provider.Provider
	cfg      *config.Config
	logger   *logging.Logger

	// mu guards current: lines are evaluated off the UI goroutine while
	// the prompt renders the active profile.
	mu      sync.Mutex
	current string
}

// NewEngine creates an engine whose plain prompts start on the configured
// default profile.
func NewEngine(registry *agent.Registry, profiles *profile.Table, prov provider.Provider, cfg *config.Config, logger *logging.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		registry: registry,
		profiles: profiles,
		prov:     prov,
		cfg:      cfg,
		logger:   logger.WithComponent("repl"),
		current:  cfg.Profile.Default,
	}
}

// CurrentProfile returns the profile applied to plain prompts.
func (e *Engine) CurrentProfile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// ExecuteLine evaluates one line of input and returns the text to show.
// Provider failures come back as output rather than errors so one bad
// request does not end the session; ErrExit is returned when the user
// asks to leave.
func (e *Engine) ExecuteLine(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	if strings.HasPrefix(line, "/") {
		return e.executeSlash(line)
	}
	return e.ask(ctx, line), nil
}

func (e *Engine) executeSlash(line string) (string, error) {
	parts := strings.Fields(line[1:])
	if len(parts) == 0 {
		return "Empty command. Type /help for available commands.", nil
	}

	switch parts[0] {
	case "help":
		return helpText, nil
	case "quit", "exit":
		return "", ErrExit
	case "profile", "persona":
		if len(parts) > 1 {
			return e.switchProfile(parts[1]), nil
		}
		return "Current profile: " + e.CurrentProfile(), nil
	case "agents", "status":
		return e.renderAgents(), nil
	case "clear":
		return clearScreen, nil
	default:
		return "Unknown command: /" + parts[0], nil
	}
}

func (e *Engine) switchProfile(name string) string {
	if _, ok := e.profiles.Get(name); !ok {
		return fmt.Sprintf("Unknown profile: %s (available: %s)",
			name, strings.Join(e.profiles.Names(), ", "))
	}

	e.mu.Lock()
	e.current = name
	e.mu.Unlock()

	e.logger.Info("profile switched", "profile", name)
	return "Switched to profile: " + name
}

func (e *Engine) renderAgents() string {
	records := e.registry.List()
	if len(records) == 0 {
		return "No agents running."
	}

	var b strings.Builder
	b.WriteString("Running agents:")
	for _, rec := range records {
		// Failure reasons can carry whole command transcripts; keep each
		// agent on one row.
		fmt.Fprintf(&b, "\n  %s (%s): %s", rec.ID, rec.Profile, util.TruncateString(rec.StatusDisplay(), 60))
	}
	return b.String()
}

func (e *Engine) ask(ctx context.Context, prompt string) string {
	current := e.CurrentProfile()

	systemPrompt := ""
	if p, ok := e.profiles.Get(current); ok {
		systemPrompt = p.SystemPrompt
	}

	e.logger.Debug("routing prompt to provider",
		"profile", current,
		"prompt", util.TruncateString(prompt, 100),
	)

	resp, err := e.prov.Complete(ctx, provider.NewAskRequest(e.cfg.Provider.Model, systemPrompt, prompt))
	if err != nil {
		e.logger.Error("completion failed", "error", err)
		return "Error: " + err.Error()
	}
	return resp.Content
}
