package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	s, err := Open(path)
	require.NoError(t, err)
	return s
}

func TestOpenCreatesEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "models.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	assert.Empty(t, s.List())

	_, err = os.Stat(path)
	assert.NoError(t, err, "store file should be created on open")
}

func TestGetUnknownNickname(t *testing.T) {
	s := tempStore(t)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetGetRoundTrip(t *testing.T) {
	s := tempStore(t)

	cfg := ModelConfig{
		Nickname:      "local",
		Provider:      "llamacpp",
		BaseURL:       "http://localhost:8012",
		ContextWindow: 32768,
	}
	require.NoError(t, s.Set(cfg))

	got, err := s.Get("local")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSetPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(ModelConfig{
		Nickname:      "ds",
		Provider:      "deepseek",
		Model:         "deepseek-chat",
		ContextWindow: 65536,
		BaseURL:       "https://api.deepseek.com/beta",
		APIKey:        "sk-test",
	}))

	reopened, err := Open(path)
	require.NoError(t, err)

	got, err := reopened.Get("ds")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", got.Provider)
	assert.Equal(t, "deepseek-chat", got.Model)
	assert.Equal(t, 65536, got.ContextWindow)
	assert.Equal(t, "sk-test", got.APIKey)
	assert.Equal(t, "ds", got.Nickname, "nickname restored from map key")
}

func TestSetValidation(t *testing.T) {
	s := tempStore(t)

	assert.Error(t, s.Set(ModelConfig{Provider: "ollama", ContextWindow: 4096}))
	assert.Error(t, s.Set(ModelConfig{Nickname: "x", ContextWindow: 4096}))
	assert.Error(t, s.Set(ModelConfig{Nickname: "x", Provider: "ollama"}))
}

func TestDelete(t *testing.T) {
	s := tempStore(t)

	require.NoError(t, s.Set(ModelConfig{
		Nickname:      "gone",
		Provider:      "ollama",
		Model:         "qwen2.5-coder",
		ContextWindow: 32768,
	}))

	require.NoError(t, s.Delete("gone"))
	_, err := s.Get("gone")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.ErrorIs(t, s.Delete("gone"), ErrNotFound)
}

func TestListSorted(t *testing.T) {
	s := tempStore(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.Set(ModelConfig{
			Nickname:      name,
			Provider:      "llamacpp",
			ContextWindow: 32768,
		}))
	}

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Nickname)
	assert.Equal(t, "mid", list[1].Nickname)
	assert.Equal(t, "zeta", list[2].Nickname)
}
