package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned by RunConfirm when the operator presses esc or Ctrl+C.
var ErrCancelled = errors.New("prompt cancelled")

// ConfirmPrompt describes what the operator is asked to confirm.
type ConfirmPrompt struct {
	Title    string
	Details  []string
	Expected string // text the operator must type
}

// ConfirmModel is a bubbletea model that asks the operator to type
// an expected value before a destructive operation.
type ConfirmModel struct {
	prompt    ConfirmPrompt
	input     textinput.Model
	keys      KeyMap
	submitted bool
	cancelled bool
}

// NewConfirmModel creates a focused confirmation prompt.
func NewConfirmModel(p ConfirmPrompt) ConfirmModel {
	ti := textinput.New()
	ti.Placeholder = p.Expected
	ti.CharLimit = 256
	ti.Width = 48
	ti.TextStyle = FocusedInputStyle
	ti.Focus()

	return ConfirmModel{
		prompt: p,
		input:  ti,
		keys:   DefaultKeyMap(),
	}
}

// Init implements tea.Model.
func (m ConfirmModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			m.submitted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m ConfirmModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(SymbolWarning + "  " + m.prompt.Title))
	b.WriteString("\n")
	for _, line := range m.prompt.Details {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(InputLabelStyle.Render(fmt.Sprintf("Type %s to confirm:", HighlightStyle.Render(m.prompt.Expected))))
	b.WriteString("\n")
	b.WriteString(m.input.View())

	return WarningBoxStyle.Render(b.String()) + "\n" + HelpStyle.Render(m.keys.HelpText()) + "\n"
}

// Value returns the trimmed text the operator typed.
func (m ConfirmModel) Value() string {
	return strings.TrimSpace(m.input.Value())
}

// Confirmed reports whether the operator submitted the expected value.
func (m ConfirmModel) Confirmed() bool {
	return m.submitted && m.Value() == m.prompt.Expected
}

// Cancelled reports whether the operator aborted the prompt.
func (m ConfirmModel) Cancelled() bool {
	return m.cancelled
}

// RunConfirm renders the prompt on stderr and returns what the operator typed.
func RunConfirm(ctx context.Context, p ConfirmPrompt) (string, error) {
	program := tea.NewProgram(NewConfirmModel(p),
		tea.WithContext(ctx),
		tea.WithOutput(os.Stderr),
	)

	final, err := program.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("confirmation prompt failed: %w", err)
	}

	m, ok := final.(ConfirmModel)
	if !ok {
		return "", fmt.Errorf("unexpected prompt model %T", final)
	}
	if m.Cancelled() {
		return "", ErrCancelled
	}
	return m.Value(), nil
}
