package repl

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/util"
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA")).Bold(true)
	profileStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	outputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9FAFB"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// Messages

type lineResultMsg struct {
	output string
	exit   bool
}

// Model drives the interactive loop: a transcript above a single input
// line, one in-flight evaluation at a time.
type Model struct {
	engine     *Engine
	input      textinput.Model
	transcript []string
	width      int
	waiting    bool
	quitting   bool
}

// NewModel creates the UI model around an engine.
func NewModel(engine *Engine) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask anything, or type /help"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 76

	return Model{engine: engine, input: ti}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 4 {
			m.input.Width = msg.Width - 4
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			if m.waiting {
				return m, nil
			}
			line := m.input.Value()
			m.input.SetValue("")
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			m.waiting = true
			// Echoed input stays on one row even when a long paste
			// exceeds the terminal width.
			echo := promptStyle.Render("> ") + line
			if m.width > 0 {
				echo = util.TruncateANSI(echo, m.width)
			}
			m.transcript = append(m.transcript, echo)
			return m, evalLine(m.engine, line)
		}

	case lineResultMsg:
		m.waiting = false
		if msg.exit {
			m.quitting = true
			return m, tea.Quit
		}
		if msg.output == clearScreen {
			m.transcript = nil
			return m, nil
		}
		if msg.output != "" {
			m.transcript = append(m.transcript, renderOutput(msg.output))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return mutedStyle.Render("Goodbye!") + "\n"
	}

	var b strings.Builder
	for _, line := range m.transcript {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.waiting {
		b.WriteString(mutedStyle.Render("thinking..."))
		b.WriteString("\n")
	}
	b.WriteString(profileStyle.Render("[" + m.engine.CurrentProfile() + "] "))
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Type /help for commands, /quit to leave."))
	return b.String()
}

// Commands

func evalLine(engine *Engine, line string) tea.Cmd {
	return func() tea.Msg {
		out, err := engine.ExecuteLine(context.Background(), line)
		if errors.Is(err, ErrExit) {
			return lineResultMsg{exit: true}
		}
		if err != nil {
			return lineResultMsg{output: "Error: " + err.Error()}
		}
		return lineResultMsg{output: out}
	}
}

func renderOutput(out string) string {
	if strings.HasPrefix(out, "Error:") || strings.HasPrefix(out, "Unknown") {
		return errorStyle.Render(out)
	}
	return outputStyle.Render(out)
}

// Run starts the interactive loop on the current terminal.
func Run(engine *Engine) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("repl requires an interactive terminal")
	}

	_, err := tea.NewProgram(NewModel(engine)).Run()
	return err
}
