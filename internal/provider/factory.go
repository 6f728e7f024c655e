package provider

import (
	"context"
	"fmt"

	"github.com/normanking/infill/internal/config"
	"github.com/normanking/infill/internal/tokenizer"
)

// Provider identifiers stored in the config record's provider field. The
// discriminator selects the adapter at construction time; adding a backend
// means adding a case here, not touching existing adapters.
const (
	ProviderLlamaCpp = "llamacpp"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
)

// ProviderIDs returns the supported provider identifiers.
func ProviderIDs() []string {
	return []string{ProviderLlamaCpp, ProviderDeepSeek, ProviderOllama}
}

// Deps are the collaborators shared by provider construction and
// configuration flows.
type Deps struct {
	Store      *config.Store
	Tokenizers *tokenizer.Cache
}

// New constructs the provider for a stored nickname. It performs no network
// I/O; a nickname absent from the store fails with config.ErrNotFound. The
// returned provider is wrapped with metrics collection and registered under
// its nickname.
func New(nickname string, deps Deps) (Provider, error) {
	cfg, err := deps.Store.Get(nickname)
	if err != nil {
		return nil, err
	}

	var p Provider
	switch cfg.Provider {
	case ProviderLlamaCpp:
		p = NewLlamaCpp(cfg)
	case ProviderDeepSeek:
		p = NewDeepSeek(cfg, deps.Tokenizers)
	case ProviderOllama:
		p = NewOllama(cfg, deps.Tokenizers)
	default:
		return nil, fmt.Errorf("unknown provider %q for nickname %q", cfg.Provider, nickname)
	}

	mp := NewMetricsProvider(p, nickname)
	RegisterMetricsProvider(mp)

	return mp, nil
}

// Configure runs the interactive configuration flow for providerID, storing
// the resulting record under nickname.
func Configure(ctx context.Context, providerID, nickname string, prompter Prompter, deps Deps) error {
	switch providerID {
	case ProviderLlamaCpp:
		return ConfigureLlamaCpp(ctx, nickname, prompter, deps.Store)
	case ProviderDeepSeek:
		return ConfigureDeepSeek(ctx, nickname, prompter, deps)
	case ProviderOllama:
		return ConfigureOllama(ctx, nickname, prompter, deps)
	default:
		return fmt.Errorf("unknown provider %q", providerID)
	}
}
