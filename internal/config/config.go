// Package config persists named model configurations for the infill
// providers. Records live in ~/.infill/models.yaml keyed by a user-chosen
// nickname and are read once when a provider is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Get when no configuration exists for a nickname.
var ErrNotFound = errors.New("no stored configuration for nickname")

// ModelConfig is one persisted model record. Provider-specific fields
// (BaseURL, APIKey) are supersets of the base shape; unused fields stay empty.
type ModelConfig struct {
	Nickname      string `mapstructure:"-" yaml:"-"`
	Provider      string `mapstructure:"provider" yaml:"provider"`
	Model         string `mapstructure:"model" yaml:"model"`
	ContextWindow int    `mapstructure:"context_window" yaml:"context_window"`
	BaseURL       string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey        string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

type fileSchema struct {
	Models map[string]ModelConfig `mapstructure:"models" yaml:"models"`
}

// Store holds the model records for one configuration file. Concurrent Get
// calls are safe; Set rewrites the file under the lock.
type Store struct {
	mu     sync.RWMutex
	path   string
	models map[string]ModelConfig
}

// DefaultPath returns the default store location (~/.infill/models.yaml).
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".infill", "models.yaml"), nil
}

// Open reads the store at path, creating an empty file if none exists.
func Open(path string) (*Store, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeFile(path, &fileSchema{Models: map[string]ModelConfig{}}); err != nil {
			return nil, fmt.Errorf("failed to write empty store: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example override: INFILL_MODELS_WORK_API_KEY
	v.SetEnvPrefix("INFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	var schema fileSchema
	if err := v.Unmarshal(&schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal store: %w", err)
	}
	if schema.Models == nil {
		schema.Models = map[string]ModelConfig{}
	}

	for nickname, cfg := range schema.Models {
		cfg.Nickname = nickname
		schema.Models[nickname] = cfg
	}

	return &Store{path: path, models: schema.Models}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the record stored for nickname.
func (s *Store) Get(nickname string) (ModelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.models[nickname]
	if !ok {
		return ModelConfig{}, fmt.Errorf("%w: %q", ErrNotFound, nickname)
	}
	return cfg, nil
}

// Set stores or overwrites the record for cfg.Nickname and rewrites the file.
func (s *Store) Set(cfg ModelConfig) error {
	if cfg.Nickname == "" {
		return fmt.Errorf("model config has empty nickname")
	}
	if cfg.Provider == "" {
		return fmt.Errorf("model config %q has empty provider", cfg.Nickname)
	}
	if cfg.ContextWindow <= 0 {
		return fmt.Errorf("model config %q has non-positive context window", cfg.Nickname)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[cfg.Nickname] = cfg
	return s.flushLocked()
}

// Delete removes the record for nickname and rewrites the file.
func (s *Store) Delete(nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[nickname]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, nickname)
	}

	delete(s.models, nickname)
	return s.flushLocked()
}

// List returns all records sorted by nickname.
func (s *Store) List() []ModelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ModelConfig, 0, len(s.models))
	for _, cfg := range s.models {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out
}

func (s *Store) flushLocked() error {
	return writeFile(s.path, &fileSchema{Models: s.models})
}

func writeFile(path string, schema *fileSchema) error {
	data, err := yaml.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return nil
}

// expandPath expands a leading tilde to the user home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
