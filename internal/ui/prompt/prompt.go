// Package prompt implements the interactive terminal prompts used by the
// configuration flows: free-text input, masked secret entry, and a filterable
// picker list. Every prompt is a small bubbletea program.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/normanking/infill/internal/provider"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7aa2f7")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7aa2f7")).
			Padding(0, 1)
)

// Terminal runs prompts on the controlling terminal.
type Terminal struct{}

// New returns a terminal prompter.
func New() *Terminal {
	return &Terminal{}
}

// Input asks for a single line of text. An empty submission yields
// defaultValue.
func (t *Terminal) Input(ctx context.Context, label, defaultValue string) (string, error) {
	m := newTextModel(label, defaultValue, false)
	final, err := runProgram(ctx, m)
	if err != nil {
		return "", err
	}

	value := strings.TrimSpace(final.input.Value())
	if value == "" {
		value = defaultValue
	}
	return value, nil
}

// Secret asks for a masked value. No default; empty submissions are returned
// as-is for the caller to judge.
func (t *Terminal) Secret(ctx context.Context, label string) (string, error) {
	m := newTextModel(label, "", true)
	final, err := runProgram(ctx, m)
	if err != nil {
		return "", err
	}
	return final.input.Value(), nil
}

// Pick presents options as a filterable list and returns the chosen one.
func (t *Terminal) Pick(ctx context.Context, title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("nothing to pick from")
	}

	m := newPickModel(title, options)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	out, err := p.Run()
	if err != nil {
		return "", mapRunError(ctx, err)
	}

	final := out.(pickModel)
	if final.cancelled {
		return "", provider.ErrUserCancelled
	}
	return final.choice, nil
}

func runProgram(ctx context.Context, m textModel) (textModel, error) {
	p := tea.NewProgram(m, tea.WithContext(ctx))
	out, err := p.Run()
	if err != nil {
		return textModel{}, mapRunError(ctx, err)
	}

	final := out.(textModel)
	if final.cancelled {
		return textModel{}, provider.ErrUserCancelled
	}
	return final, nil
}

// mapRunError keeps context cancellation recognizable through bubbletea.
func mapRunError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return context.Canceled
	}
	return err
}

type textModel struct {
	label     string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newTextModel(label, defaultValue string, secret bool) textModel {
	ti := textinput.New()
	ti.Placeholder = defaultValue
	ti.CharLimit = 256
	ti.Width = 48
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.Focus()

	return textModel{label: label, input: ti}
}

func (m textModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m textModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m textModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render(m.label) + "\n")
	b.WriteString(m.input.View() + "\n")
	b.WriteString(helpStyle.Render("[Enter] Confirm  [Esc] Cancel"))
	return boxStyle.Render(b.String())
}

// pickItem adapts a plain string to the bubbles list interfaces.
type pickItem string

func (i pickItem) FilterValue() string { return string(i) }
func (i pickItem) Title() string       { return string(i) }
func (i pickItem) Description() string { return "" }

type pickModel struct {
	list      list.Model
	choice    string
	cancelled bool
}

func newPickModel(title string, options []string) pickModel {
	items := make([]list.Item, len(options))
	for i, opt := range options {
		items[i] = pickItem(opt)
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.Styles.SelectedTitle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#1a1b26")).
		Background(lipgloss.Color("#7aa2f7")).
		Bold(true)

	l := list.New(items, delegate, 60, 16)
	l.Title = title
	l.SetShowHelp(true)
	l.SetFilteringEnabled(true)
	l.SetShowStatusBar(false)
	l.Styles.Title = labelStyle.Padding(0, 1)

	return pickModel{list: l}
}

func (m pickModel) Init() tea.Cmd {
	return nil
}

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-4)

	case tea.KeyMsg:
		// Let an active filter consume keys first.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(pickItem); ok {
				m.choice = string(item)
				return m, tea.Quit
			}
		case "esc", "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) View() string {
	if m.choice != "" || m.cancelled {
		return ""
	}
	return boxStyle.Render(m.list.View())
}
