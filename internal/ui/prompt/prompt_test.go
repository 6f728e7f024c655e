package prompt

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTextModelSubmit(t *testing.T) {
	m := newTextModel("Base URL", "http://localhost:8012", false)

	next, _ := m.Update(keyRunes("http://host:9000"))
	next, cmd := next.(textModel).Update(tea.KeyMsg{Type: tea.KeyEnter})

	final := next.(textModel)
	assert.True(t, final.done)
	assert.False(t, final.cancelled)
	assert.Equal(t, "http://host:9000", final.input.Value())
	require.NotNil(t, cmd, "enter must quit the program")
}

func TestTextModelEscapeCancels(t *testing.T) {
	m := newTextModel("Base URL", "", false)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, next.(textModel).cancelled)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, next.(textModel).cancelled)
}

func TestTextModelSecretMasksEcho(t *testing.T) {
	m := newTextModel("API key", "", true)

	next, _ := m.Update(keyRunes("sk-secret"))
	final := next.(textModel)
	assert.Equal(t, "sk-secret", final.input.Value())
	assert.NotContains(t, final.View(), "sk-secret")
}

func TestPickModelSelect(t *testing.T) {
	m := newPickModel("Select a model", []string{"codellama:13b", "qwen2.5-coder:7b"})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, cmd := next.(pickModel).Update(tea.KeyMsg{Type: tea.KeyEnter})

	final := next.(pickModel)
	assert.Equal(t, "qwen2.5-coder:7b", final.choice)
	require.NotNil(t, cmd)
}

func TestPickModelEscapeCancels(t *testing.T) {
	m := newPickModel("Select a model", []string{"codellama:13b"})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	final := next.(pickModel)
	assert.True(t, final.cancelled)
	assert.Empty(t, final.choice)
}
